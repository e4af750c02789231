package expressions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/load"
)

type loadAvg struct {
	lock sync.RWMutex
	data load.AvgStat
}

func (l *loadAvg) updateThread(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	l.update()

	for {
		select {
		case <-ticker.C:
			l.update()
		case <-ctx.Done():
			return
		}
	}
}

func (l *loadAvg) update() {
	data, err := load.Avg()
	if err != nil {
		slog.Debug("can't get load average", "err", err)
		return
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	l.data = *data
}

func (l *loadAvg) get() load.AvgStat {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.data
}

var (
	globalLoadAvg *loadAvg
)

func init() {
	globalLoadAvg = &loadAvg{}
	go globalLoadAvg.updateThread(context.Background())
}

// Load1 is the system load average over the last minute. It reads zero
// until the first sample is taken or where the platform has no load
// average.
func Load1() float64 { return globalLoadAvg.get().Load1 }

func Load5() float64 { return globalLoadAvg.get().Load5 }

func Load15() float64 { return globalLoadAvg.get().Load15 }
