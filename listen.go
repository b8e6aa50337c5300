package evring

import (
	"net"

	"golang.org/x/sys/unix"
)

// TCPListener is the result of synchronously creating, binding, and
// listening on an IPv4 stream socket. Construction is not asynchronous
// (§4.6): only Accept, submitted against Socket, goes through the ring.
type TCPListener struct {
	Socket  Socket
	Address Address
}

// UnixListener is the unix-domain analogue of TCPListener.
type UnixListener struct {
	Socket Socket
	Path   string
}

func socketInet4Stream() (int, error) {
	return unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
}

func socketUnixStream() (int, error) {
	return unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
}

func inet4Sockaddr(ip net.IP, port int) *unix.SockaddrInet4 {
	sa := &unix.SockaddrInet4{Port: port}
	if ip4 := ip.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	return sa
}

// TCPListen synchronously creates, binds (with SO_REUSEADDR), and
// listens on an IPv4 stream socket at ip:port.
func (l *EventLoop) TCPListen(ip net.IP, port int, backlog int) (TCPListener, error) {
	fd, err := socketInet4Stream()
	if err != nil {
		return TCPListener{}, setupError("socket", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return TCPListener{}, setupError("setsockopt", err)
	}
	sa := inet4Sockaddr(ip, port)
	if err := unix.Bind(fd, sa); err != nil {
		return TCPListener{}, setupError("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return TCPListener{}, setupError("listen", err)
	}
	return TCPListener{Socket: Socket(fd), Address: Address{Kind: "inet", IP: ip, Port: port}}, nil
}

// UnixListen synchronously creates, binds, and listens on a unix-domain
// stream socket at path. Any existing file at path is unlinked first;
// a missing file is not an error.
func (l *EventLoop) UnixListen(path string, backlog int) (UnixListener, error) {
	fd, err := socketUnixStream()
	if err != nil {
		return UnixListener{}, setupError("socket", err)
	}
	_ = unix.Unlink(path)
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		return UnixListener{}, setupError("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return UnixListener{}, setupError("listen", err)
	}
	return UnixListener{Socket: Socket(fd), Path: path}, nil
}

// UDPReceiver synchronously creates and binds a datagram socket at
// ip:port; datagrams are read/written via Receive/Send like any socket.
func (l *EventLoop) UDPReceiver(ip net.IP, port int) (Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return -1, setupError("socket", err)
	}
	if err := unix.Bind(fd, inet4Sockaddr(ip, port)); err != nil {
		return -1, setupError("bind", err)
	}
	return Socket(fd), nil
}
