package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
)

// Format selects the on-disk shape of a snapshot file.
type Format string

// Supported formats.
const (
	// FormatList is a JSON array of checksummed addresses.
	FormatList Format = "list"
	// FormatAsOf is {"asOfBlock": n, "blacklistedAddress": [...]}.
	FormatAsOf Format = "asof"
)

// ErrUnknownFormat is returned for a format other than list or asof.
var ErrUnknownFormat = errors.New("unknown snapshot format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatList, FormatAsOf:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w %q (want %q or %q)", ErrUnknownFormat, s, FormatList, FormatAsOf)
}

// Snapshot is a deduplicated set of addresses confirmed at their last check,
// kept in first-seen order.
type Snapshot struct {
	AsOfBlock uint64
	Addresses []common.Address
}

// Contains reports whether addr is in the snapshot.
func (s *Snapshot) Contains(addr common.Address) bool {
	for _, a := range s.Addresses {
		if a == addr {
			return true
		}
	}
	return false
}

// Strings renders the addresses checksummed.
func (s *Snapshot) Strings() []string {
	out := make([]string, len(s.Addresses))
	for i, a := range s.Addresses {
		out[i] = a.Hex()
	}
	return out
}

type asOfFile struct {
	AsOfBlock          uint64   `json:"asOfBlock"`
	BlacklistedAddress []string `json:"blacklistedAddress"`
}

// Store persists a Snapshot at a file path. Every mutation is a full
// read-modify-write of the file; concurrent writers on the same path are
// not coordinated.
type Store struct {
	path   string
	format Format
}

// NewStore creates a Store.
func NewStore(path string, format Format) (*Store, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	return &Store{path: path, format: format}, nil
}

// Path returns the snapshot file path.
func (s *Store) Path() string { return s.path }

// Exists reports whether the snapshot file has been written.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the snapshot. A missing file is an empty snapshot. Either shape
// is accepted on read so a store can take over a file written in the other
// format.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &Snapshot{}, nil
	}

	var (
		raw  []string
		asOf uint64
	)
	if data[0] == '{' {
		var f asOfFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing snapshot %s: %w", s.path, err)
		}
		raw, asOf = f.BlacklistedAddress, f.AsOfBlock
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", s.path, err)
	}

	snap := &Snapshot{AsOfBlock: asOf}
	seen := make(map[common.Address]bool, len(raw))
	for _, r := range raw {
		if !common.IsHexAddress(r) {
			return nil, fmt.Errorf("snapshot %s holds invalid address %q", s.path, r)
		}
		addr := common.HexToAddress(r)
		if seen[addr] {
			continue
		}
		seen[addr] = true
		snap.Addresses = append(snap.Addresses, addr)
	}
	return snap, nil
}

// Merge adds addrs to the persisted set, skipping ones already present, and
// advances AsOfBlock to asOfBlock if it is newer. It returns the addresses
// that were actually added.
func (s *Store) Merge(addrs []common.Address, asOfBlock uint64) ([]common.Address, error) {
	snap, err := s.Load()
	if err != nil {
		return nil, err
	}

	seen := make(map[common.Address]bool, len(snap.Addresses)+len(addrs))
	for _, a := range snap.Addresses {
		seen[a] = true
	}
	var added []common.Address
	for _, a := range addrs {
		if seen[a] {
			continue
		}
		seen[a] = true
		snap.Addresses = append(snap.Addresses, a)
		added = append(added, a)
	}
	if asOfBlock > snap.AsOfBlock {
		snap.AsOfBlock = asOfBlock
	}

	return added, s.write(snap)
}

// Remove drops addrs from the persisted set. It returns the addresses that
// were present and removed.
func (s *Store) Remove(addrs []common.Address, asOfBlock uint64) ([]common.Address, error) {
	snap, err := s.Load()
	if err != nil {
		return nil, err
	}

	drop := make(map[common.Address]bool, len(addrs))
	for _, a := range addrs {
		drop[a] = true
	}
	kept := snap.Addresses[:0]
	var removed []common.Address
	for _, a := range snap.Addresses {
		if drop[a] {
			removed = append(removed, a)
			continue
		}
		kept = append(kept, a)
	}
	snap.Addresses = kept
	if asOfBlock > snap.AsOfBlock {
		snap.AsOfBlock = asOfBlock
	}

	return removed, s.write(snap)
}

// write replaces the file through a temp file and rename so a crash leaves
// either the old or the new snapshot.
func (s *Store) write(snap *Snapshot) error {
	addrs := snap.Strings()

	var v interface{} = addrs
	if s.format == FormatAsOf {
		v = asOfFile{AsOfBlock: snap.AsOfBlock, BlacklistedAddress: addrs}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
