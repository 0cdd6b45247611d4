package bus

import (
	"fmt"
	"sync"

	"github.com/tonylturner/rs485mon/internal/logging"
	"github.com/tonylturner/rs485mon/internal/message"
)

// Simulator writes messages back onto the bus, e.g. as a replay subscriber.
type Simulator struct {
	port   Port
	logger *logging.Logger

	mu   sync.Mutex
	sent int
	err  error
}

func NewSimulator(port Port, logger *logging.Logger) *Simulator {
	return &Simulator{port: port, logger: logger}
}

// Send writes the raw frame of m. After the first write error every
// further call is ignored; Err reports it.
func (s *Simulator) Send(m message.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	raw := m.Telegram().Raw()
	if _, err := s.port.Write(raw); err != nil {
		s.err = fmt.Errorf("write frame: %w", err)
		s.logger.Error("%v", s.err)
		return
	}
	s.logger.LogHex("sent", raw)
	s.sent++
}

// Sent is the number of frames written.
func (s *Simulator) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func (s *Simulator) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
