package server

// ChanSvc serializes work on a single goroutine. The Lua interpreter is not
// safe for concurrent use, so every runtime touch goes through one service.
type ChanSvc chan func()

// Svc queues code on the service without blocking the caller.
func Svc(s ChanSvc, code func()) {
	go func() {
		s <- code
	}()
}

// SvcSync queues code and waits for its result.
func SvcSync[T any](s ChanSvc, code func() (T, error)) (T, error) {
	result := make(chan bool)
	var value T
	var err error
	Svc(s, func() {
		value, err = code()
		result <- true
	})
	<-result
	return value, err
}

// RunSvc runs a service. Close the channel to stop it.
func RunSvc(s ChanSvc) {
	go func() {
		for {
			cmd, ok := <-s
			if !ok {
				break
			}
			cmd()
		}
	}()
}
