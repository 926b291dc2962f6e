package abicodec

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Keccak256 hashes data with the legacy Keccak-256 used by the EVM.
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// Signature builds the canonical "name(type1,type2)" string.
func Signature(name string, types []Type) string {
	return name + "(" + strings.Join(TypeNames(types), ",") + ")"
}

// Selector is the first 4 bytes of the Keccak-256 of the canonical signature.
func Selector(name string, types []Type) [4]byte {
	var sel [4]byte
	copy(sel[:], Keccak256([]byte(Signature(name, types))))
	return sel
}

// EventTopic is the full Keccak-256 of an event signature (topic 0).
func EventTopic(name string, types []Type) common.Hash {
	return common.BytesToHash(Keccak256([]byte(Signature(name, types))))
}

// ParseSignature splits "transfer(address to, uint256)" into its name and
// types, dropping parameter names and whitespace.
func ParseSignature(sig string) (string, []Type, error) {
	sig = strings.TrimSpace(sig)
	open := strings.Index(sig, "(")
	if open <= 0 || !strings.HasSuffix(sig, ")") {
		return "", nil, &SignatureError{Signature: sig}
	}
	name := strings.TrimSpace(sig[:open])
	params := strings.TrimSpace(sig[open+1 : len(sig)-1])
	if params == "" {
		return name, nil, nil
	}

	var tags []string
	for _, p := range strings.Split(params, ",") {
		fields := strings.Fields(p)
		if len(fields) == 0 {
			return "", nil, &SignatureError{Signature: sig}
		}
		tags = append(tags, fields[0])
	}
	types, err := ParseTypes(tags)
	if err != nil {
		return "", nil, err
	}
	return name, types, nil
}

// SignatureError reports a signature string that is not name(types).
type SignatureError struct {
	Signature string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("invalid signature %q: expected name(type1,type2)", e.Signature)
}

// Unwrap lets errors.Is match ErrMalformedInput.
func (e *SignatureError) Unwrap() error { return ErrMalformedInput }
