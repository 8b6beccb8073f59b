package identity

import "sync"

// subscribers fans session changes out to listeners. Listeners are called
// without the lock held, so they may call back into the client.
type subscribers struct {
	mu        sync.Mutex
	next      int
	listeners map[int]Listener
}

func (s *subscribers) Subscribe(listener Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[int]Listener)
	}
	id := s.next
	s.next++
	s.listeners[id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
		})
	}
}

func (s *subscribers) emit(event Event, session *Session) {
	s.mu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(event, session)
	}
}
