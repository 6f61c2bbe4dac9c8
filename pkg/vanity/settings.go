package vanity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"
)

// ErrInvalidSettings is wrapped by every error returned by Settings.Validate.
var ErrInvalidSettings = errors.New("invalid settings")

// StartOffsetsFunc returns the initial counter values of the workers,
// one value per worker. The values must be distinct modulo 2^(8*counterWidth).
type StartOffsetsFunc func(workerCount, counterWidth uint) []*big.Int

// PartialMatch is a progress event: a digest matched the first
// Settings.PartialLength bytes of the target pattern.
type PartialMatch struct {
	WorkerIndex uint
	Count       uint64
	Elapsed     time.Duration
	Buffer      []byte
	Digest      Digest
}

// PartialMatchFunc receives progress events. It is called concurrently
// from all the workers, and the worker is blocked until it returns.
type PartialMatchFunc func(ctx context.Context, m PartialMatch)

type Settings struct {
	// BufferLength is the total size of a message buffer (prefix + counter).
	BufferLength uint

	// CounterWidth is the size of the trailing mutable part of the buffer.
	CounterWidth uint

	// WorkerCount is the amount of workers, each starting at a different
	// counter value.
	WorkerCount uint

	// MaxParallel limits how many workers may run at the same time.
	// Zero means no limit. A value below WorkerCount requires
	// StopAtPartitionEnd, otherwise the workers waiting for a slot
	// would never start.
	MaxParallel uint

	// Prefix is the immutable beginning of the buffer. If it is shorter than
	// BufferLength-CounterWidth it is padded with zeros.
	Prefix []byte

	TargetPattern TargetPattern

	// PartialLength is the amount of leading pattern bytes which is
	// reported as progress. Zero disables the reports.
	PartialLength uint

	// HasherFactory defaults to sha256.
	HasherFactory HasherFactory

	// MaxGuesses cancels the search after the given amount of hashes
	// in total (across all workers). Zero means no limit.
	MaxGuesses uint64

	// StopAtPartitionEnd stops a worker when it reaches the start offset of
	// the next worker (its partition is exhausted). Together the workers then
	// check every counter value exactly once. Otherwise workers run into
	// the partitions of each other and re-check already checked values.
	StopAtPartitionEnd bool

	// StartOffsets defaults to EvenlySpacedStartOffsets.
	StartOffsets StartOffsetsFunc

	OnPartialMatch PartialMatchFunc
}

// isValidSignaturePrefix is the ABI encoding of a call
// isValidSignature(bytes32 hash, bytes signature) without the signature data:
// selector, hash, offset of `signature`, length of `signature`.
func isValidSignaturePrefix() []byte {
	prefix := make([]byte, 0, 4+32*3)
	prefix = append(prefix, 0x16, 0x26, 0xBA, 0x7E)
	prefix = append(prefix,
		0x19, 0xBB, 0x34, 0xE2, 0x93, 0xBB, 0xA9, 0x6B,
		0xF0, 0xCA, 0xEE, 0xA5, 0x4C, 0xDD, 0x3D, 0x2D,
		0xAD, 0x7F, 0xDF, 0x44, 0xCB, 0xEA, 0x85, 0x51,
		0x73, 0xFA, 0x84, 0x53, 0x4F, 0xCF, 0xB5, 0x28,
	)
	offsetWord := make([]byte, 32)
	offsetWord[31] = 64
	prefix = append(prefix, offsetWord...)
	lengthWord := make([]byte, 32)
	prefix = append(prefix, lengthWord...)
	return prefix
}

// DefaultSettings returns the settings to search for a 32-byte signature
// payload whose sha256 starts with the isValidSignature selector 1626BA7E.
func DefaultSettings() Settings {
	target := TargetPattern{0x16, 0x26, 0xBA, 0x7E}
	return Settings{
		BufferLength:  132,
		CounterWidth:  32,
		WorkerCount:   8,
		Prefix:        isValidSignaturePrefix(),
		TargetPattern: target,
		PartialLength: DefaultPartialLength(target),
	}
}

// DefaultPartialLength is all the bytes of the pattern except the last one.
func DefaultPartialLength(p TargetPattern) uint {
	return max(uint(len(p)), 1) - 1
}

// EvenlySpacedStartOffsets gives worker `i` the counter value
// floor(i * 2^(8*counterWidth) / workerCount).
func EvenlySpacedStartOffsets(workerCount, counterWidth uint) []*big.Int {
	if workerCount == 0 {
		return nil
	}
	space := counterSpaceSize(counterWidth)
	w := new(big.Int).SetUint64(uint64(workerCount))
	offsets := make([]*big.Int, 0, workerCount)
	for idx := uint(0); idx < workerCount; idx++ {
		offset := new(big.Int).Mul(space, new(big.Int).SetUint64(uint64(idx)))
		offsets = append(offsets, offset.Quo(offset, w))
	}
	return offsets
}

// partitionEnds returns for every offset the next greater offset (cyclically,
// modulo 2^(8*counterWidth)). Worker `i` checks the counter values
// (offsets[i], ends[i]]. A single worker gets its own offset as the end,
// i.e. the whole counter space.
func partitionEnds(offsets []*big.Int, counterWidth uint) []*big.Int {
	space := counterSpaceSize(counterWidth)
	normalized := make([]*big.Int, len(offsets))
	order := make([]int, len(offsets))
	for idx, offset := range offsets {
		normalized[idx] = new(big.Int).Mod(offset, space)
		order[idx] = idx
	}
	sort.Slice(order, func(i, j int) bool {
		return normalized[order[i]].Cmp(normalized[order[j]]) < 0
	})

	ends := make([]*big.Int, len(offsets))
	for pos, idx := range order {
		ends[idx] = normalized[order[(pos+1)%len(order)]]
	}
	return ends
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSettings, fmt.Sprintf(format, args...))
}

// Validate returns an error wrapping ErrInvalidSettings if the settings
// cannot be used for a search.
func (s *Settings) Validate() error {
	if s.WorkerCount == 0 {
		return invalidf("worker count is zero; should be at least one")
	}
	if s.CounterWidth == 0 {
		return invalidf("counter width is zero; should be at least one byte")
	}
	if s.CounterWidth > s.BufferLength {
		return invalidf("counter width %d is larger than the buffer length %d", s.CounterWidth, s.BufferLength)
	}
	if prefixCap := s.BufferLength - s.CounterWidth; uint(len(s.Prefix)) > prefixCap {
		return invalidf("prefix has %d bytes, but only %d bytes fit before the counter region", len(s.Prefix), prefixCap)
	}
	if len(s.TargetPattern) == 0 {
		return invalidf("target pattern is empty")
	}
	if s.PartialLength >= uint(len(s.TargetPattern)) {
		return invalidf("partial match length %d should be less than the target pattern length %d", s.PartialLength, len(s.TargetPattern))
	}
	if digestSize := s.hasherFactory()().Size(); len(s.TargetPattern) > digestSize {
		return invalidf("target pattern has %d bytes, but the digest has only %d", len(s.TargetPattern), digestSize)
	}
	if counterSpaceSize(s.CounterWidth).Cmp(new(big.Int).SetUint64(uint64(s.WorkerCount))) < 0 {
		return invalidf("%d workers cannot get distinct start values within a %d-byte counter", s.WorkerCount, s.CounterWidth)
	}

	if s.MaxParallel != 0 && s.MaxParallel < s.WorkerCount && !s.StopAtPartitionEnd {
		return invalidf("only %d of %d workers may run at once, and without stopping at partition ends the rest would never run", s.MaxParallel, s.WorkerCount)
	}

	offsets := s.startOffsets()
	if uint(len(offsets)) != s.WorkerCount {
		return invalidf("received %d start offsets for %d workers", len(offsets), s.WorkerCount)
	}
	seen := make(map[string]int, len(offsets))
	for idx, offset := range offsets {
		buf := make([]byte, s.CounterWidth)
		SetCounter(buf, s.CounterWidth, offset)
		if prevIdx, ok := seen[string(buf)]; ok {
			return invalidf("workers #%d and #%d have the same start offset %X", prevIdx, idx, buf)
		}
		seen[string(buf)] = idx
	}
	return nil
}

func (s *Settings) hasherFactory() HasherFactory {
	if s.HasherFactory == nil {
		return hasherFactories[DefaultHashFuncName]
	}
	return s.HasherFactory
}

func (s *Settings) startOffsets() []*big.Int {
	if s.StartOffsets == nil {
		return EvenlySpacedStartOffsets(s.WorkerCount, s.CounterWidth)
	}
	return s.StartOffsets(s.WorkerCount, s.CounterWidth)
}

// NewMessageBuffer returns a buffer of BufferLength bytes: the prefix,
// zero padding and the counter region set to `offset`.
func (s *Settings) NewMessageBuffer(offset *big.Int) []byte {
	buf := make([]byte, s.BufferLength)
	copy(buf, s.Prefix)
	SetCounter(buf, s.CounterWidth, offset)
	return buf
}

// PaddedPrefix returns the immutable part of the message buffer.
func (s *Settings) PaddedPrefix() []byte {
	prefix := make([]byte, s.BufferLength-s.CounterWidth)
	copy(prefix, s.Prefix)
	return prefix
}

// clone returns a copy which does not share memory with the original,
// so that the caller may modify their settings while a search is running.
func (s Settings) clone() Settings {
	s.Prefix = bytes.Clone(s.Prefix)
	s.TargetPattern = TargetPattern(bytes.Clone(s.TargetPattern))
	s.HasherFactory = s.hasherFactory()
	return s
}
