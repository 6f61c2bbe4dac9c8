package vanity

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()
	require.NoError(t, settings.Validate())
	require.Equal(t, uint(3), settings.PartialLength)

	buf := settings.NewMessageBuffer(nil)
	require.Len(t, buf, 132)
	require.Equal(t, []byte{0x16, 0x26, 0xBA, 0x7E}, buf[:4])
	require.Equal(t, []byte{0x19, 0xBB, 0x34, 0xE2}, buf[4:8])
	require.Equal(t, byte(64), buf[67])
	require.Equal(t, make([]byte, 64), buf[68:132])
	require.Equal(t, settings.PaddedPrefix(), buf[:100])
}

func TestEvenlySpacedStartOffsets(t *testing.T) {
	offsets := EvenlySpacedStartOffsets(8, 32)
	require.Len(t, offsets, 8)

	settings := DefaultSettings()
	for idx, offset := range offsets {
		buf := settings.NewMessageBuffer(offset)
		require.Equal(t, byte(idx*32), buf[100])
		require.Equal(t, make([]byte, 31), buf[101:])
	}

	offsets = EvenlySpacedStartOffsets(3, 1)
	values := make([]int64, 0, len(offsets))
	for _, offset := range offsets {
		values = append(values, offset.Int64())
	}
	require.Equal(t, []int64{0, 85, 170}, values)

	require.Empty(t, EvenlySpacedStartOffsets(0, 1))
}

func TestSettingsValidate(t *testing.T) {
	valid := func() Settings {
		return Settings{
			BufferLength:  4,
			CounterWidth:  2,
			WorkerCount:   2,
			Prefix:        []byte{1},
			TargetPattern: TargetPattern{0xAB, 0xCD},
			PartialLength: 1,
		}
	}
	s := valid()
	require.NoError(t, s.Validate())

	for name, modify := range map[string]func(s *Settings){
		"no_workers":              func(s *Settings) { s.WorkerCount = 0 },
		"zero_counter":            func(s *Settings) { s.CounterWidth = 0 },
		"counter_too_wide":        func(s *Settings) { s.CounterWidth = 5 },
		"prefix_too_long":         func(s *Settings) { s.Prefix = []byte{1, 2, 3} },
		"empty_target":            func(s *Settings) { s.TargetPattern = nil },
		"partial_not_shorter":     func(s *Settings) { s.PartialLength = 2 },
		"target_longer_than_hash": func(s *Settings) { s.TargetPattern = make(TargetPattern, 33) },
		"too_many_workers":        func(s *Settings) { s.CounterWidth = 1; s.WorkerCount = 257 },
		"same_offsets": func(s *Settings) {
			s.StartOffsets = func(workerCount, counterWidth uint) []*big.Int {
				return []*big.Int{big.NewInt(1), big.NewInt(1 + 1<<16)}
			}
		},
		"max_parallel_without_partition_stop": func(s *Settings) { s.MaxParallel = 1 },
		"not_enough_offsets": func(s *Settings) {
			s.StartOffsets = func(workerCount, counterWidth uint) []*big.Int {
				return []*big.Int{big.NewInt(1)}
			}
		},
	} {
		t.Run(name, func(t *testing.T) {
			s := valid()
			modify(&s)
			require.ErrorIs(t, s.Validate(), ErrInvalidSettings)
		})
	}

	t.Run("counter_is_whole_buffer", func(t *testing.T) {
		s := valid()
		s.Prefix = nil
		s.CounterWidth = s.BufferLength
		require.NoError(t, s.Validate())
	})
}

func TestSettingsValidateMaxParallel(t *testing.T) {
	s := Settings{
		BufferLength:       2,
		CounterWidth:       1,
		WorkerCount:        4,
		MaxParallel:        1,
		TargetPattern:      TargetPattern{0xAB},
		StopAtPartitionEnd: true,
	}
	require.NoError(t, s.Validate())

	s.StopAtPartitionEnd = false
	s.MaxParallel = 4
	require.NoError(t, s.Validate())
}

func TestPartitionEnds(t *testing.T) {
	values := func(ends []*big.Int) []int64 {
		r := make([]int64, 0, len(ends))
		for _, end := range ends {
			r = append(r, end.Int64())
		}
		return r
	}

	require.Equal(t, []int64{64, 128, 192, 0}, values(partitionEnds(EvenlySpacedStartOffsets(4, 1), 1)))
	require.Equal(t, []int64{7}, values(partitionEnds([]*big.Int{big.NewInt(7)}, 1)))
	require.Equal(t, []int64{10, 100, 200}, values(partitionEnds([]*big.Int{
		big.NewInt(200), big.NewInt(10), big.NewInt(100),
	}, 1)))

	// offsets are taken modulo the counter space
	require.Equal(t, []int64{2, 1}, values(partitionEnds([]*big.Int{
		big.NewInt(1 + 1<<8), big.NewInt(2),
	}, 1)))
}

func TestSettingsClone(t *testing.T) {
	s := DefaultSettings()
	c := s.clone()
	s.Prefix[0] = 0
	s.TargetPattern[0] = 0
	require.Equal(t, byte(0x16), c.Prefix[0])
	require.Equal(t, byte(0x16), c.TargetPattern[0])
	require.NotNil(t, c.HasherFactory)
}

func TestDefaultPartialLength(t *testing.T) {
	require.Equal(t, uint(3), DefaultPartialLength(TargetPattern{1, 2, 3, 4}))
	require.Equal(t, uint(0), DefaultPartialLength(TargetPattern{1}))
	require.Equal(t, uint(0), DefaultPartialLength(nil))
}
