package scanner

import "sync"

// ReadFunc captures one frame. It may block and does not have to be interruptible.
type ReadFunc func() ([]byte, error)

type readResult struct {
	frame []byte
	err   error
}

// readStream runs a blocking ReadFunc on its own goroutine, one call per Next.
type readStream struct {
	read    ReadFunc
	release func()

	req  chan struct{}
	res  chan readResult
	done chan struct{}

	closeOnce sync.Once
}

// NewReadStream adapts a blocking read to a FrameStream. Close makes a pending
// Next return ErrStreamClosed at once; a read already in flight finishes in the
// background and release runs after it. release may be nil.
func NewReadStream(read ReadFunc, release func()) FrameStream {
	s := &readStream{
		read:    read,
		release: release,
		req:     make(chan struct{}),
		res:     make(chan readResult, 1),
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *readStream) loop() {
	if s.release != nil {
		defer s.release()
	}

	for {
		select {
		case <-s.done:
			return
		case <-s.req:
		}

		select {
		case <-s.done:
			return
		default:
		}

		frame, err := s.read()
		s.res <- readResult{frame: frame, err: err}
	}
}

func (s *readStream) Next() ([]byte, error) {
	select {
	case <-s.done:
		return nil, ErrStreamClosed
	default:
	}

	select {
	case s.req <- struct{}{}:
	case <-s.done:
		return nil, ErrStreamClosed
	}

	select {
	case r := <-s.res:
		return r.frame, r.err
	case <-s.done:
		return nil, ErrStreamClosed
	}
}

func (s *readStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
