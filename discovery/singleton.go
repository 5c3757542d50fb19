package discovery

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// sessionBanner identifies a live discovery session holder. Whoever holds
// the loopback lock answers every connection with this line.
const sessionBanner = "eventgate-discovery/1"

// SessionLock is the per-host discovery singleton. Only the process holding
// the lock runs the discovery beacon; siblings on the same host detect it
// and stay passive.
type SessionLock struct {
	ln   net.Listener
	done chan struct{}
}

// AcquireSessionLock binds the lock address. Failure usually means another
// process on this host already holds the session; use CheckSessionHolder to
// tell a live holder from a leftover.
func AcquireSessionLock(addr string) (*SessionLock, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	lock := &SessionLock{
		ln:   ln,
		done: make(chan struct{}),
	}

	go lock.serve()

	return lock, nil
}

func (l *SessionLock) serve() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
				continue
			}
		}

		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		_, _ = conn.Write([]byte(sessionBanner + "\n"))
		_ = conn.Close()
	}
}

// Release frees the lock so another process can take over the session.
func (l *SessionLock) Release() {
	close(l.done)
	_ = l.ln.Close()
}

// CheckSessionHolder verifies that a live discovery session answers at the
// lock address. The whole check is bounded by timeout; a timeout error
// means the holder's liveness is unknown, not that it is dead.
func CheckSessionHolder(addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("dial session holder: %w", err)
	}

	defer func() {
		_ = conn.Close()
	}()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read session banner: %w", err)
	}

	if strings.TrimSpace(line) != sessionBanner {
		return fmt.Errorf("unexpected session banner: %q", strings.TrimSpace(line))
	}

	return nil
}

// isTimeoutErr reports whether the error is a network timeout, as opposed
// to an outright refusal.
func isTimeoutErr(err error) bool {
	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
