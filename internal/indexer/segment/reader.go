package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/index"
)

// Load reads a segment file fully into memory and returns the rebuilt index.
// Nothing stays open afterwards, so a retired snapshot holds no descriptors.
func Load(path string) (*index.MemoryIndex, SegmentHeader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, SegmentHeader{}, fmt.Errorf("opening segment file: %w", err)
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, SegmentHeader{}, fmt.Errorf("invalid segment file: %d bytes is too short", len(data))
	}
	header := parseHeader(data[:HeaderSize])
	if header.Magic != MagicBytes {
		return nil, header, fmt.Errorf("invalid segment file: bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, header, fmt.Errorf("unsupported segment version %d", header.Version)
	}

	dictData, err := section(data, header.DictOffset, header.DictSize)
	if err != nil {
		return nil, header, fmt.Errorf("reading dictionary: %w", err)
	}
	lenData, err := section(data, header.LenOffset, header.LenSize)
	if err != nil {
		return nil, header, fmt.Errorf("reading chunk lengths: %w", err)
	}
	footer := data[len(data)-FooterSize:]
	if want := binary.LittleEndian.Uint32(footer[0:4]); checksum(dictData, lenData) != want {
		return nil, header, fmt.Errorf("segment checksum mismatch")
	}

	var dict []DictEntry
	if err := json.Unmarshal(dictData, &dict); err != nil {
		return nil, header, fmt.Errorf("parsing dictionary: %w", err)
	}
	var lengths map[string]int
	if err := json.Unmarshal(lenData, &lengths); err != nil {
		return nil, header, fmt.Errorf("parsing chunk lengths: %w", err)
	}

	entries := make([]index.TermEntry, 0, len(dict))
	for _, d := range dict {
		raw, err := section(data, header.PostOffset+d.PostOffset, int64(d.PostLen))
		if err != nil {
			return nil, header, fmt.Errorf("reading postings for %q: %w", d.Term, err)
		}
		var postings index.PostingList
		if err := json.Unmarshal(raw, &postings); err != nil {
			return nil, header, fmt.Errorf("parsing postings for %q: %w", d.Term, err)
		}
		entries = append(entries, index.TermEntry{Term: d.Term, Postings: postings})
	}
	return index.FromEntries(entries, lengths), header, nil
}

func parseHeader(b []byte) SegmentHeader {
	return SegmentHeader{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		ChunkCount: binary.LittleEndian.Uint32(b[12:16]),
		DictOffset: int64(binary.LittleEndian.Uint64(b[16:24])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(b[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[40:48])),
		LenOffset:  int64(binary.LittleEndian.Uint64(b[48:56])),
		LenSize:    int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}

func section(data []byte, offset, size int64) ([]byte, error) {
	if offset < 0 || size < 0 || offset+size > int64(len(data)) {
		return nil, fmt.Errorf("section [%d,+%d) out of bounds", offset, size)
	}
	return data[offset : offset+size], nil
}
