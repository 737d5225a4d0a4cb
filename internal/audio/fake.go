package audio

import (
	"sync"
	"time"
)

// FakeBackend is an in-memory Backend for tests and dry runs. Each Start
// replays the configured float32 chunks through the capture callback, in
// order, optionally paced by Interval.
type FakeBackend struct {
	DeviceList []DeviceInfo
	Chunks     [][]byte // raw little-endian float32 chunks
	Interval   time.Duration
	InitErr    error
	StartErr   error
}

func (f *FakeBackend) Devices() ([]DeviceInfo, error) {
	return f.DeviceList, nil
}

func (f *FakeBackend) NewCapture(_ *DeviceInfo, _ CaptureConfig, callback DataCallback) (Device, error) {
	if f.InitErr != nil {
		return nil, f.InitErr
	}
	return &fakeDevice{backend: f, cb: callback}, nil
}

func (f *FakeBackend) Close() {}

type fakeDevice struct {
	backend *FakeBackend
	cb      DataCallback

	mu       sync.Mutex
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (d *fakeDevice) Start() error {
	if d.backend.StartErr != nil {
		return d.backend.StartErr
	}
	d.mu.Lock()
	d.stopCh = make(chan struct{})
	d.feedDone = make(chan struct{})
	stopCh, feedDone := d.stopCh, d.feedDone
	d.mu.Unlock()

	go func() {
		defer close(feedDone)
		for _, chunk := range d.backend.Chunks {
			select {
			case <-stopCh:
				return
			default:
			}
			d.cb(chunk, uint32(len(chunk)/4))
			if d.backend.Interval > 0 {
				select {
				case <-stopCh:
					return
				case <-time.After(d.backend.Interval):
				}
			}
		}
	}()
	return nil
}

func (d *fakeDevice) Stop() {
	d.mu.Lock()
	stopCh, feedDone := d.stopCh, d.feedDone
	if stopCh != nil {
		select {
		case <-stopCh:
		default:
			close(stopCh)
		}
	}
	d.mu.Unlock()
	if feedDone != nil {
		<-feedDone
	}
}

func (d *fakeDevice) Close() {
	d.Stop()
}
