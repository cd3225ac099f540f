package fs_test

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http/httptest"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/reduct-os/kvfs/fs"
	"github.com/reduct-os/kvfs/internal/abi"
	"github.com/reduct-os/kvfs/internal/simhost"
	"github.com/reduct-os/kvfs/pseudofs"
	"github.com/reduct-os/kvfs/stats"
	"github.com/reduct-os/kvfs/userfs"
	"github.com/reduct-os/kvfs/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var acpiTable = []byte("RSDT\x24\x00\x00\x00\x01")

type testSystem struct {
	*fs.System
	host *simhost.Host
	fb   []byte
}

func newSystem(t *testing.T) (*testSystem, userfs.ProcessID) {
	host := simhost.NewHost()
	s := &testSystem{
		System: fs.New(host, fs.Options{DriverTimeout: 10 * time.Second}),
		host:   host,
		fb:     make([]byte, 8*4*pseudofs.BytesPerPixel),
	}
	fb, err := pseudofs.NewFbFS(8, 4, s.fb)
	require.NoError(t, err)
	require.NoError(t, s.Boot(acpiTable, fb))

	pid, _ := host.Spawn()
	s.Admit(pid)
	return s, pid
}

func TestBootTree(t *testing.T) {
	s, pid := newSystem(t)

	fd, err := s.Open(pid, "/", fs.Read)
	require.NoError(t, err)
	list, err := s.ListDir(pid, fd)
	require.NoError(t, err)
	assert.Equal(t, []vfs.FileInfo{{Name: "dev", Type: vfs.Dir}, {Name: "pipe", Type: vfs.Dir}}, list)

	fd, err = s.Open(pid, fs.DevDir, fs.Read)
	require.NoError(t, err)
	list, err = s.ListDir(pid, fd)
	require.NoError(t, err)
	assert.Equal(t, []vfs.FileInfo{{Name: "fb0", Type: vfs.File}, {Name: "kernel.acpi", Type: vfs.File}}, list)
}

func TestDescriptorsStartAtThreeAndIncrease(t *testing.T) {
	s, pid := newSystem(t)

	var fds []int
	for i := 0; i < 4; i++ {
		fd, err := s.Open(pid, fs.AcpiPath, fs.Read)
		require.NoError(t, err)
		fds = append(fds, fd)
	}
	assert.Equal(t, []int{3, 4, 5, 6}, fds)

	require.NoError(t, s.Close(pid, 4))
	fd, err := s.Open(pid, fs.AcpiPath, fs.Read)
	require.NoError(t, err)
	assert.Equal(t, 7, fd)
}

func TestAcpiRead(t *testing.T) {
	s, pid := newSystem(t)

	fd, err := s.Open(pid, fs.AcpiPath, fs.Read)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := s.Read(pid, fd, buf)
	require.NoError(t, err)
	assert.Equal(t, acpiTable, buf[:n])

	size, err := s.Size(pid, fd)
	require.NoError(t, err)
	assert.EqualValues(t, len(acpiTable), size)
}

func TestWriteLseekReadRoundTrip(t *testing.T) {
	s, pid := newSystem(t)

	fd, err := s.Create(pid, "/tmpfile", vfs.File, fs.ReadWrite)
	require.NoError(t, err)

	require.NoError(t, s.Lseek(pid, fd, 10))
	n, err := s.Write(pid, fd, []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	// The cursor only moves on lseek, so reading now sees the same bytes.
	buf := make([]byte, 7)
	n, err = s.Read(pid, fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))

	require.NoError(t, s.Lseek(pid, fd, 0))
	buf = make([]byte, 17)
	n, err = s.Read(pid, fd, buf)
	require.NoError(t, err)
	assert.Equal(t, 17, n)
	assert.Equal(t, make([]byte, 10), buf[:10])
}

func TestWriteNeedsWriteMode(t *testing.T) {
	s, pid := newSystem(t)

	fd, err := s.Create(pid, "/ro", vfs.File, fs.Read)
	require.NoError(t, err)

	_, err = s.Write(pid, fd, []byte("x"))
	assert.ErrorIs(t, err, vfs.ErrPermission)
	assert.EqualValues(t, -1, fs.Status(0, err))
}

func TestFramebuffer(t *testing.T) {
	s, pid := newSystem(t)

	fd, err := s.Open(pid, fs.FbPath, fs.Write)
	require.NoError(t, err)

	w, err := s.Ioctl(pid, fd, pseudofs.IoctlFbWidth, 0)
	require.NoError(t, err)
	h, err := s.Ioctl(pid, fd, pseudofs.IoctlFbHeight, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 8, w)
	assert.EqualValues(t, 4, h)

	require.NoError(t, s.Lseek(pid, fd, 4))
	n, err := s.Write(pid, fd, []byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, s.fb[4:8])

	before := append([]byte(nil), s.fb...)
	for _, off := range []int64{int64(len(s.fb)) - 2, math.MaxInt64} {
		require.NoError(t, s.Lseek(pid, fd, off))
		n, err = s.Write(pid, fd, []byte{1, 2, 3, 4})
		require.NoError(t, err)
		assert.Zero(t, n, "offset %d", off)
	}
	assert.Equal(t, before, s.fb)
}

func TestWriteFarPastEnd(t *testing.T) {
	s, pid := newSystem(t)

	fd, err := s.Create(pid, "/f", vfs.File, fs.ReadWrite)
	require.NoError(t, err)

	for _, off := range []int64{math.MaxInt64, 1 << 40} {
		require.NoError(t, s.Lseek(pid, fd, off))
		_, err = s.Write(pid, fd, []byte{1})
		assert.ErrorIs(t, err, vfs.ErrInvalid)
	}
	size, err := s.Size(pid, fd)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestPipeThroughDescriptors(t *testing.T) {
	s, pid := newSystem(t)

	r, w, err := s.Pipe(pid)
	require.NoError(t, err)
	assert.NotEqual(t, r, w)

	fd, err := s.Open(pid, fs.PipeDir, fs.Read)
	require.NoError(t, err)
	list, err := s.ListDir(pid, fd)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fmt.Sprintf("pipe%d-0", pid), list[0].Name)

	_, err = s.Write(pid, r, []byte("x"))
	assert.ErrorIs(t, err, vfs.ErrPermission)

	_, err = s.Write(pid, w, []byte("abc"))
	require.NoError(t, err)

	buf := make([]byte, 8)
	n, err := s.Read(pid, r, buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))

	st, err := s.Stat(pid, r)
	require.NoError(t, err)
	assert.EqualValues(t, abi.S_IFIFO, st.Mode&abi.S_IFMT)

	// The pipe leaves the tree with its last descriptor.
	require.NoError(t, s.Close(pid, r))
	_, err = s.KernelOpen(fmt.Sprintf("/pipe/pipe%d-0", pid))
	require.NoError(t, err)
	require.NoError(t, s.Close(pid, w))
	_, err = s.KernelOpen(fmt.Sprintf("/pipe/pipe%d-0", pid))
	assert.ErrorIs(t, err, vfs.ErrNotFound)
}

func TestPipeReaderWaitsForWriter(t *testing.T) {
	s, pid := newSystem(t)
	r, w, err := s.Pipe(pid)
	require.NoError(t, err)

	got := make(chan string)
	go func() {
		buf := make([]byte, 8)
		n, _ := s.Read(pid, r, buf)
		got <- string(buf[:n])
	}()

	_, err = s.Write(pid, w, []byte("late"))
	require.NoError(t, err)
	select {
	case v := <-got:
		assert.Equal(t, "late", v)
	case <-time.After(5 * time.Second):
		t.Fatal("pipe reader never returned")
	}
}

func TestPipeDrainedReadBlocks(t *testing.T) {
	s, pid := newSystem(t)
	r, w, err := s.Pipe(pid)
	require.NoError(t, err)

	_, err = s.Write(pid, w, []byte("abc"))
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := s.Read(pid, r, buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))

	got := make(chan string)
	go func() {
		buf := make([]byte, 8)
		n, _ := s.Read(pid, r, buf)
		got <- string(buf[:n])
	}()
	select {
	case v := <-got:
		t.Fatalf("second read returned %q without a write", v)
	case <-time.After(20 * time.Millisecond):
	}

	_, err = s.Write(pid, w, []byte("z"))
	require.NoError(t, err)
	select {
	case v := <-got:
		assert.Equal(t, "z", v)
	case <-time.After(5 * time.Second):
		t.Fatal("pipe reader never returned")
	}
}

func TestListDirSortsCreatedEntries(t *testing.T) {
	s, pid := newSystem(t)

	_, err := s.Create(pid, "/d", vfs.Dir, fs.Read)
	require.NoError(t, err)
	for _, name := range []string{"c", "a", "b"} {
		_, err := s.Create(pid, "/d/"+name, vfs.File, fs.Read)
		require.NoError(t, err)
	}

	fd, err := s.Open(pid, "/d", fs.Read)
	require.NoError(t, err)
	list, err := s.ListDir(pid, fd)
	require.NoError(t, err)
	assert.Equal(t, []vfs.FileInfo{
		{Name: "a", Type: vfs.File},
		{Name: "b", Type: vfs.File},
		{Name: "c", Type: vfs.File},
	}, list)
}

func TestCwdAndRelativePaths(t *testing.T) {
	s, pid := newSystem(t)

	cwd, err := s.GetCwd(pid)
	require.NoError(t, err)
	assert.Equal(t, "/", cwd)

	require.NoError(t, s.ChangeCwd(pid, "/dev"))
	cwd, _ = s.GetCwd(pid)
	assert.Equal(t, "/dev", cwd)

	fd, err := s.Open(pid, "kernel.acpi", fs.Read)
	require.NoError(t, err)
	typ, err := s.TypeOf(pid, fd)
	require.NoError(t, err)
	assert.Equal(t, vfs.File, typ)

	fd, err = s.Create(pid, "scratch", vfs.Dir, fs.Read)
	require.NoError(t, err)
	typ, _ = s.TypeOf(pid, fd)
	assert.Equal(t, vfs.Dir, typ)

	require.NoError(t, s.ChangeCwd(pid, "scratch"))
	cwd, _ = s.GetCwd(pid)
	assert.Equal(t, "/dev/scratch", cwd)

	assert.ErrorIs(t, s.ChangeCwd(pid, "/dev/kernel.acpi"), vfs.ErrNotDir)
	assert.ErrorIs(t, s.ChangeCwd(pid, "/missing"), vfs.ErrNotFound)
	cwd, _ = s.GetCwd(pid)
	assert.Equal(t, "/dev/scratch", cwd)
}

func TestCreateNested(t *testing.T) {
	s, pid := newSystem(t)

	_, err := s.Create(pid, "/etc", vfs.Dir, fs.Read)
	require.NoError(t, err)
	fd, err := s.Create(pid, "/etc/motd", vfs.File, fs.ReadWrite)
	require.NoError(t, err)

	_, err = s.Write(pid, fd, []byte("hi"))
	require.NoError(t, err)

	again, err := s.Open(pid, "/etc/motd", fs.Read)
	require.NoError(t, err)
	buf := make([]byte, 2)
	n, err := s.Read(pid, again, buf)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf[:n]))

	_, err = s.Create(pid, "/etc/motd", vfs.File, fs.Read)
	assert.ErrorIs(t, err, vfs.ErrExist)
	_, err = s.Create(pid, "/nodir/file", vfs.File, fs.Read)
	assert.ErrorIs(t, err, vfs.ErrNotFound)
	_, err = s.Create(pid, "/", vfs.File, fs.Read)
	assert.ErrorIs(t, err, vfs.ErrInvalid)
}

func TestStatAndStatFS(t *testing.T) {
	s, pid := newSystem(t)

	fd, err := s.Open(pid, fs.AcpiPath, fs.Read)
	require.NoError(t, err)

	st, err := s.Stat(pid, fd)
	require.NoError(t, err)
	assert.EqualValues(t, len(acpiTable), st.FileSize)
	assert.EqualValues(t, abi.S_IFCHR, st.Mode&abi.S_IFMT)
	assert.NotZero(t, st.Ino)

	pkt := abi.Marshal(st)
	assert.Len(t, pkt, abi.StatSize)
	assert.Equal(t, st, abi.StatDecoder(pkt).Stat())

	sfs, err := s.StatFS(pid, fd)
	require.NoError(t, err)
	assert.EqualValues(t, abi.BlockSize, sfs.BSize)
	assert.EqualValues(t, 1, sfs.Blocks)
}

func TestListDirOnFileIsEmpty(t *testing.T) {
	s, pid := newSystem(t)

	fd, err := s.Open(pid, fs.AcpiPath, fs.Read)
	require.NoError(t, err)
	list, err := s.ListDir(pid, fd)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSyscallsAreCounted(t *testing.T) {
	s, pid := newSystem(t)

	fd, err := s.Open(pid, fs.AcpiPath, fs.Read)
	require.NoError(t, err)
	require.NoError(t, s.Lseek(pid, fd, 1))
	_, err = s.Stat(pid, fd)
	require.NoError(t, err)
	_, err = s.StatFS(pid, fd)
	require.NoError(t, err)
	_, err = s.Size(pid, fd)
	require.NoError(t, err)
	_, err = s.TypeOf(pid, fd)
	require.NoError(t, err)
	_, err = s.ListDir(pid, fd)
	require.NoError(t, err)
	require.NoError(t, s.ChangeCwd(pid, fs.DevDir))
	_, err = s.GetCwd(pid)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	stats.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	for _, op := range []string{"lseek", "stat", "statfs", "fsize", "type", "listdir", "chdir", "getcwd"} {
		assert.Contains(t, string(body), fmt.Sprintf(`kvfs_syscalls_total{op=%q,result="ok"}`, op))
	}
}

func TestBadDescriptors(t *testing.T) {
	s, pid := newSystem(t)

	_, err := s.Read(pid, 99, make([]byte, 1))
	assert.ErrorIs(t, err, fs.ErrBadDescriptor)
	assert.ErrorIs(t, err, vfs.ErrNotFound)

	_, err = s.Open(pid+100, "/", fs.Read)
	assert.ErrorIs(t, err, fs.ErrBadDescriptor)

	assert.ErrorIs(t, s.Close(pid, 42), fs.ErrBadDescriptor)
	assert.ErrorIs(t, s.Lseek(pid, 42, 0), fs.ErrBadDescriptor)
	_, err = s.Stat(pid, 42)
	assert.ErrorIs(t, err, fs.ErrBadDescriptor)
	_, err = s.Ioctl(pid, 42, 1, 0)
	assert.ErrorIs(t, err, fs.ErrBadDescriptor)
	assert.EqualValues(t, -1, fs.Status(0, err))
}

func TestOpenModeFrom(t *testing.T) {
	assert.Equal(t, fs.Read, fs.OpenModeFrom(0))
	assert.Equal(t, fs.Write, fs.OpenModeFrom(1))
	assert.Equal(t, fs.ReadWrite, fs.OpenModeFrom(2))
	assert.Panics(t, func() { fs.OpenModeFrom(3) })
}

func TestStatus(t *testing.T) {
	assert.EqualValues(t, 12, fs.Status(12, nil))
	assert.EqualValues(t, -1, fs.Status(12, vfs.ErrPermission))
}

func TestForkSharesTable(t *testing.T) {
	s, parent := newSystem(t)
	child, _ := s.host.Spawn()
	require.NoError(t, s.Fork(parent, child))

	fd, err := s.Open(child, fs.AcpiPath, fs.Read)
	require.NoError(t, err)

	_, err = s.Read(parent, fd, make([]byte, 4))
	require.NoError(t, err, "descriptor opened by the child is visible to the parent")

	require.NoError(t, s.ChangeCwd(parent, "/dev"))
	cwd, _ := s.GetCwd(child)
	assert.Equal(t, "/dev", cwd)

	// The parent exiting leaves the shared table intact.
	require.NoError(t, s.Exit(parent))
	_, err = s.Read(child, fd, make([]byte, 4))
	assert.NoError(t, err)
}

func TestForkWithStdio(t *testing.T) {
	s, parent := newSystem(t)

	console := pseudofs.NewMemFile()
	keyboard := pseudofs.NewPipeFS()
	child, _ := s.host.Spawn()
	s.ForkWithStdio(child, keyboard, console)

	_, err := s.Write(child, fs.Stdout, []byte("out"))
	require.NoError(t, err)
	require.NoError(t, s.Lseek(child, fs.Stderr, 3))
	_, err = s.Write(child, fs.Stderr, []byte("err"))
	require.NoError(t, err)

	buf := make([]byte, 6)
	n, _ := console.ReadAt(0, buf)
	assert.Equal(t, "outerr", string(buf[:n]))

	_, err = s.Write(child, fs.Stdin, []byte("x"))
	assert.ErrorIs(t, err, vfs.ErrPermission)

	fd, err := s.Open(child, fs.AcpiPath, fs.Read)
	require.NoError(t, err)
	assert.Equal(t, 3, fd)

	// Tables are not shared with the parent.
	_, err = s.Read(parent, fs.Stdout, buf)
	assert.ErrorIs(t, err, fs.ErrBadDescriptor)
}

func TestExitClosesEverything(t *testing.T) {
	s, pid := newSystem(t)

	_, _, err := s.Pipe(pid)
	require.NoError(t, err)
	require.NoError(t, s.Exit(pid))

	_, err = s.GetCwd(pid)
	assert.ErrorIs(t, err, fs.ErrNoProcess)
	_, err = s.KernelOpen(fmt.Sprintf("/pipe/pipe%d-0", pid))
	assert.ErrorIs(t, err, vfs.ErrNotFound)

	assert.ErrorIs(t, s.Exit(pid), fs.ErrNoProcess)
}

func TestConcurrentOpensGetDistinctDescriptors(t *testing.T) {
	s, pid := newSystem(t)

	var mu sync.Mutex
	seen := map[int]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fd, err := s.Open(pid, fs.AcpiPath, fs.Read)
			assert.NoError(t, err)
			mu.Lock()
			seen[fd] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 32)
}

// driver is a one-file user-space filesystem that logs the commands it
// answers.
type driver struct {
	mu   sync.Mutex
	ops  []string
	data []byte
}

func (d *driver) log(op string) {
	d.mu.Lock()
	d.ops = append(d.ops, op)
	d.mu.Unlock()
}

func (d *driver) Ops() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.ops...)
}

func (d *driver) Open(p string) (vfs.InodeType, error) {
	d.log("OPEN " + p)
	switch p {
	case "/":
		return vfs.Dir, nil
	case "/foo":
		return vfs.File, nil
	}
	return vfs.File, vfs.ErrNotFound
}

func (d *driver) Read(p string, offset int64, buf []byte) (int, error) {
	d.log("READ " + p)
	return copy(buf, d.data[offset:]), nil
}

func (d *driver) Write(p string, offset int64, buf []byte) (int, error) {
	d.log("WRITE " + p)
	return len(buf), nil
}

func (d *driver) Size(p string) (int64, error) {
	d.log("SIZE " + p)
	return int64(len(d.data)), nil
}

func (d *driver) List(p string) ([]vfs.FileInfo, error) {
	d.log("LIST " + p)
	return []vfs.FileInfo{{Name: "foo", Type: vfs.File}}, nil
}

func (d *driver) Ioctl(p string, cmd, arg uint64) (uint64, error) {
	d.log("IOCTL " + p)
	return 0, nil
}

func startDriver(t *testing.T, s *testSystem, name string) (userfs.ProcessID, *driver) {
	pid, mem := s.host.Spawn()
	s.Admit(pid)

	addr, err := mem.Alloc(abi.CommandSize)
	require.NoError(t, err)
	require.NoError(t, s.RegisterDriver(pid, name, addr))

	d := &driver{data: []byte("remote bytes")}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		userfs.Serve(ctx, mem, addr, d, runtime.Gosched)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return pid, d
}

func TestDriverPathOpenThenRead(t *testing.T) {
	s, pid := newSystem(t)
	_, d := startDriver(t, s, "mydrv")

	fd, err := s.Open(pid, ":mydrv:/foo", fs.Read)
	require.NoError(t, err)

	buf := make([]byte, 6)
	n, err := s.Read(pid, fd, buf)
	require.NoError(t, err)
	assert.Equal(t, "remote", string(buf[:n]))

	assert.Equal(t, []string{"OPEN /foo", "READ /foo"}, d.Ops())
}

func TestDriverPathDirectory(t *testing.T) {
	s, pid := newSystem(t)
	startDriver(t, s, "mydrv")

	fd, err := s.Open(pid, ":mydrv:/", fs.Read)
	require.NoError(t, err)
	list, err := s.ListDir(pid, fd)
	require.NoError(t, err)
	assert.Equal(t, []vfs.FileInfo{{Name: "foo", Type: vfs.File}}, list)

	require.NoError(t, s.ChangeCwd(pid, ":mydrv:/"))
	cwd, err := s.GetCwd(pid)
	require.NoError(t, err)
	assert.Equal(t, ":mydrv:/", cwd)

	fd, err = s.Open(pid, "foo", fs.Read)
	require.NoError(t, err)
	size, err := s.Size(pid, fd)
	require.NoError(t, err)
	assert.EqualValues(t, len("remote bytes"), size)
}

func TestDriverPathFailures(t *testing.T) {
	s, pid := newSystem(t)
	drv, _ := startDriver(t, s, "mydrv")

	_, err := s.Open(pid, ":nosuch:/foo", fs.Read)
	assert.ErrorIs(t, err, vfs.ErrNotFound)

	_, err = s.Open(pid, ":mydrv:/missing", fs.Read)
	assert.ErrorIs(t, err, vfs.ErrNotFound)

	_, err = s.Open(pid, ":mydrv", fs.Read)
	assert.ErrorIs(t, err, vfs.ErrInvalid)

	_, err = s.Create(pid, ":mydrv:/new", vfs.File, fs.Read)
	assert.ErrorIs(t, err, vfs.ErrNotSupported)

	// The registration goes away with the driver process.
	require.NoError(t, s.Exit(drv))
	_, err = s.Open(pid, ":mydrv:/foo", fs.Read)
	assert.ErrorIs(t, err, vfs.ErrNotFound)
}

func TestRegisterDriverNeedsProcess(t *testing.T) {
	s, _ := newSystem(t)
	assert.ErrorIs(t, s.RegisterDriver(999, "x", 0x1000), fs.ErrNoProcess)
}
