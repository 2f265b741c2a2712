package solver

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/blang/semver/v4"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tamarack-opt/tamarack"
	"github.com/tamarack-opt/tamarack/internal/ioutils"
	"github.com/tamarack-opt/tamarack/logger"
)

func version() string {
	return tamarack.Version.String()
}

// ToBytes serializes the state to a byte slice.
// The broadcast path of the restart scheduler goes through this encoding, so
// worker snapshots never share memory with the coordinator copy.
func (s *State) ToBytes() ([]byte, error) {
	// we prepare and write 3 distinct blocks of data;
	// that allows for a more efficient serialization/deserialization (+ parallelism)
	var vector, counters []byte
	var g errgroup.Group
	g.Go(func() error {
		var err error
		vector, err = s.vectorToBytes()
		return err
	})
	g.Go(func() error {
		var err error
		counters, err = s.countersToBytes()
		return err
	})
	body, err := s.toBytes()
	if err != nil {
		return nil, err
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	h := header{
		vectorLen:   uint64(len(vector)),
		countersLen: uint64(len(counters)),
		bodyLen:     uint64(len(body)),
	}

	buf := h.toBytes()
	buf = append(buf, vector...)
	buf = append(buf, counters...)
	buf = append(buf, body...)

	return buf, nil
}

// FromBytes deserializes the state from a byte slice and returns the number
// of bytes read.
func (s *State) FromBytes(data []byte) (int, error) {
	if len(data) < headerLen {
		return 0, errors.New("invalid data length")
	}

	// read the header which contains the length of each section
	h := new(header)
	h.fromBytes(data)

	if uint64(len(data)) < headerLen+h.vectorLen+h.countersLen+h.bodyLen {
		return 0, errors.New("invalid data length")
	}

	// read the sections in parallel
	var g errgroup.Group
	g.Go(func() error {
		return s.vectorFromBytes(data[headerLen : headerLen+h.vectorLen])
	})
	g.Go(func() error {
		return s.countersFromBytes(data[headerLen+h.vectorLen : headerLen+h.vectorLen+h.countersLen])
	})

	dm, err := cbor.DecOptions{
		MaxArrayElements: 2147483647,
		MaxMapPairs:      2147483647,
	}.DecMode()
	if err != nil {
		return 0, err
	}
	decoder := dm.NewDecoder(bytes.NewReader(data[headerLen+h.vectorLen+h.countersLen : headerLen+h.vectorLen+h.countersLen+h.bodyLen]))
	if err := decoder.Decode(s); err != nil {
		return 0, err
	}

	if err := s.CheckSerializationHeader(); err != nil {
		return 0, err
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	return int(headerLen + h.vectorLen + h.countersLen + h.bodyLen), nil
}

// CheckSerializationHeader compares the version stamped in a deserialized
// state with the binary's.
func (s *State) CheckSerializationHeader() error {
	binaryVersion := tamarack.Version
	objectVersion, err := semver.Parse(s.TamarackVersion)
	if err != nil {
		return fmt.Errorf("when parsing tamarack version: %w", err)
	}

	if binaryVersion.Compare(objectVersion) != 0 {
		log := logger.Logger()
		log.Warn().Str("binary", binaryVersion.String()).Str("object", objectVersion.String()).Msg("tamarack version (binary) mismatch with solver state. there are no guarantees on compatibility")
	}

	return nil
}

func (s *State) toBytes() ([]byte, error) {
	// CBOR encoding of the state (except what we do directly in binary)
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	encoder := enc.NewEncoder(buf)

	if err := encoder.Encode(s); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

const headerLen = 3 * 8

type header struct {
	// length in bytes of each sections
	vectorLen   uint64
	countersLen uint64
	bodyLen     uint64
}

func (h *header) toBytes() []byte {
	buf := make([]byte, 0, headerLen+h.vectorLen+h.countersLen+h.bodyLen)

	buf = binary.LittleEndian.AppendUint64(buf, h.vectorLen)
	buf = binary.LittleEndian.AppendUint64(buf, h.countersLen)
	buf = binary.LittleEndian.AppendUint64(buf, h.bodyLen)

	return buf
}

func (h *header) fromBytes(buf []byte) {
	h.vectorLen = binary.LittleEndian.Uint64(buf[:8])
	h.countersLen = binary.LittleEndian.Uint64(buf[8:16])
	h.bodyLen = binary.LittleEndian.Uint64(buf[16:24])
}

func (s *State) vectorToBytes() ([]byte, error) {
	// the solution vector doesn't compress well (arbitrary float bits);
	// we keep it as fixed-width little-endian words, which also makes
	// deserialization much faster.
	buf := make([]byte, 0, 8+len(s.X)*8)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(s.X)))
	for _, v := range s.X {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return buf, nil
}

func (s *State) vectorFromBytes(buf []byte) error {
	if len(buf) < 8 {
		return errors.New("invalid vector section")
	}
	n := binary.LittleEndian.Uint64(buf[:8])
	buf = buf[8:]
	if uint64(len(buf)) < 8*n {
		return errors.New("invalid vector section")
	}
	s.X = make([]float64, n)
	for i := range s.X {
		s.X[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i : 8*i+8]))
	}
	return nil
}

func (s *State) countersToBytes() ([]byte, error) {
	var buf bytes.Buffer
	err := ioutils.CompressAndWriteUints64(&buf, []uint64{
		s.Counters.Nodes,
		s.Counters.Cuts,
		s.Counters.Branches,
		s.Counters.MaxDepth,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *State) countersFromBytes(buf []byte) error {
	_, vals, err := ioutils.ReadAndDecompressUints64(bytes.NewReader(buf))
	if err != nil {
		return err
	}
	if len(vals) != 4 {
		return fmt.Errorf("invalid counters section: %d entries", len(vals))
	}
	s.Counters = Counters{
		Nodes:    vals[0],
		Cuts:     vals[1],
		Branches: vals[2],
		MaxDepth: vals[3],
	}
	return nil
}
