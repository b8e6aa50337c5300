package evring

import (
	"net"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Address is the decoded form of a client or server socket address, kept
// deliberately small: evring does not do address formatting (out of
// scope), just enough structure for a caller to build its own.
type Address struct {
	// Kind is "inet" or "unix".
	Kind string
	IP   net.IP
	Port int
	Path string
}

func encodeInet4Sockaddr(cell *unix.RawSockaddrAny, ip net.IP, port int) uint32 {
	sa := (*unix.RawSockaddrInet4)(unsafe.Pointer(cell))
	*sa = unix.RawSockaddrInet4{}
	sa.Family = unix.AF_INET
	sa.Port = htons(uint16(port))
	ip4 := ip.To4()
	if ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	return uint32(unsafe.Sizeof(unix.RawSockaddrInet4{}))
}

func encodeUnixSockaddr(cell *unix.RawSockaddrAny, path string) uint32 {
	sa := (*unix.RawSockaddrUnix)(unsafe.Pointer(cell))
	*sa = unix.RawSockaddrUnix{}
	sa.Family = unix.AF_UNIX
	for i := 0; i < len(path) && i < len(sa.Path)-1; i++ {
		sa.Path[i] = int8(path[i])
	}
	return uint32(unsafe.Sizeof(unix.RawSockaddrUnix{}))
}

func decodeSockaddr(cell *unix.RawSockaddrAny) Address {
	switch cell.Addr.Family {
	case unix.AF_INET:
		sa := (*unix.RawSockaddrInet4)(unsafe.Pointer(cell))
		return Address{
			Kind: "inet",
			IP:   net.IPv4(sa.Addr[0], sa.Addr[1], sa.Addr[2], sa.Addr[3]),
			Port: int(ntohs(sa.Port)),
		}
	case unix.AF_UNIX:
		sa := (*unix.RawSockaddrUnix)(unsafe.Pointer(cell))
		buf := make([]byte, 0, len(sa.Path))
		for _, b := range sa.Path {
			if b == 0 {
				break
			}
			buf = append(buf, byte(b))
		}
		return Address{Kind: "unix", Path: string(buf)}
	default:
		return Address{}
	}
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

func ntohs(v uint16) uint16 {
	return v<<8 | v>>8
}
