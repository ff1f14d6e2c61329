package realtime

import "sync/atomic"

// sequencer hands out monotonically increasing event numbers.
type sequencer struct{ n atomic.Uint64 }

func (s *sequencer) next() uint64 { return s.n.Add(1) }
