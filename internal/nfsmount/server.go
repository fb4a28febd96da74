package nfsmount

import (
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"runtime"

	billy "github.com/go-git/go-billy/v5"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"
)

// Server manages the NFS server lifecycle.
type Server struct {
	listener net.Listener
	port     int
}

// NewServer starts an NFS server on addr backed by the given filesystem.
// An empty addr or ":0" picks an ephemeral port.
func NewServer(fs billy.Filesystem, addr string) (*Server, error) {
	if addr == "" {
		addr = ":0"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nfs listen: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	handler := nfshelper.NewNullAuthHandler(fs)
	cacheHelper := nfshelper.NewCachingHandler(handler, 4096)

	go func() {
		if err := nfs.Serve(listener, cacheHelper); err != nil {
			slog.Debug("nfs server stopped", "port", port, "error", err)
		}
	}()

	return &Server{listener: listener, port: port}, nil
}

// Port returns the TCP port the NFS server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Close stops the NFS server by closing the listener.
func (s *Server) Close() error {
	return s.listener.Close()
}

// MountOptions returns the mount(8) options for a go-nfs export on goos.
func MountOptions(goos string, port int, writable bool) (string, error) {
	var opts string
	switch goos {
	case "darwin":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,locallocks,noresvport", port, port)
		if !writable {
			opts += ",rdonly"
		}
	case "linux":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,local_lock=all,nolock", port, port)
		if !writable {
			opts += ",ro"
		}
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
	return opts, nil
}

// Mount calls the system mount command to mount the export at mountpoint.
// Requires sudo. The writable flag controls read-only vs read-write.
func Mount(port int, mountpoint string, writable bool) error {
	opts, err := MountOptions(runtime.GOOS, port, writable)
	if err != nil {
		return err
	}
	cmd := exec.Command("sudo", "mount", "-t", "nfs", "-o", opts, "localhost:/", mountpoint)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount failed: %w\n%s", err, string(output))
	}
	return nil
}

// Unmount calls the system unmount command on the mountpoint.
func Unmount(mountpoint string) error {
	if runtime.GOOS == "darwin" {
		// diskutil needs no sudo for user NFS mounts
		if err := exec.Command("diskutil", "unmount", mountpoint).Run(); err == nil {
			return nil
		}
	}
	output, err := exec.Command("sudo", "umount", mountpoint).CombinedOutput()
	if err != nil {
		return fmt.Errorf("unmount failed: %w\n%s", err, string(output))
	}
	return nil
}
