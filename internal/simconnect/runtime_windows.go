//go:build windows

package simconnect

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	// returned by SimConnect_GetNextDispatch when the queue is empty
	hresultFail = 0x80004005

	unusedDatumID = math.MaxUint32
)

// FindRuntime looks for the SimConnect library next to the executable and
// in the working directory, including their "lib" subdirectories.
func FindRuntime(runtime string) (string, error) {
	var lookup []string

	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	lookup = append(lookup, filepath.Dir(exePath))

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	lookup = append(lookup, wd)

	for _, dir := range lookup {
		for _, candidate := range []string{filepath.Join(dir, runtime), filepath.Join(dir, "lib", runtime)} {
			if _, err = os.Stat(candidate); err != nil {
				continue // continue to next candidate
			}

			return candidate, nil
		}
	}

	return "", fmt.Errorf("failed to find library '%s'", runtime)
}

// LoadRuntimes loads every SimConnect library found for this architecture.
func LoadRuntimes() ([]Library, error) {
	var libs []Library
	var errs []error

	for _, name := range RuntimeNames() {
		path, err := FindRuntime(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		lib, err := LoadNativeLibrary(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		libs = append(libs, lib)
	}

	if len(libs) == 0 {
		return nil, errors.Join(errs...)
	}
	return libs, nil
}

// NativeLibrary calls into a SimConnect DLL.
type NativeLibrary struct {
	path string
	dll  *windows.DLL

	open                       *windows.Proc
	close                      *windows.Proc
	addToDataDefinition        *windows.Proc
	clearDataDefinition        *windows.Proc
	requestDataOnSimObject     *windows.Proc
	subscribeToSystemEvent     *windows.Proc
	unsubscribeFromSystemEvent *windows.Proc
	getNextDispatch            *windows.Proc
}

// LoadNativeLibrary loads the DLL at path and resolves the procedures the
// client uses.
func LoadNativeLibrary(path string) (*NativeLibrary, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	l := NativeLibrary{path: path, dll: dll}
	procs := []struct {
		name string
		dst  **windows.Proc
	}{
		{"SimConnect_Open", &l.open},
		{"SimConnect_Close", &l.close},
		{"SimConnect_AddToDataDefinition", &l.addToDataDefinition},
		{"SimConnect_ClearDataDefinition", &l.clearDataDefinition},
		{"SimConnect_RequestDataOnSimObject", &l.requestDataOnSimObject},
		{"SimConnect_SubscribeToSystemEvent", &l.subscribeToSystemEvent},
		{"SimConnect_UnsubscribeFromSystemEvent", &l.unsubscribeFromSystemEvent},
		{"SimConnect_GetNextDispatch", &l.getNextDispatch},
	}
	for _, p := range procs {
		proc, err := dll.FindProc(p.name)
		if err != nil {
			_ = dll.Release()
			return nil, fmt.Errorf("resolving %s in %s: %w", p.name, path, err)
		}
		*p.dst = proc
	}

	return &l, nil
}

func (l *NativeLibrary) Name() string {
	return filepath.Base(l.path)
}

func (l *NativeLibrary) Open(name string, ready chan<- struct{}) (Conn, error) {
	dataEvent, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("creating data event: %w", err)
	}

	stopEvent, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		_ = windows.CloseHandle(dataEvent)
		return nil, fmt.Errorf("creating stop event: %w", err)
	}

	namePtr, err := windows.BytePtrFromString(name)
	if err != nil {
		_ = windows.CloseHandle(dataEvent)
		_ = windows.CloseHandle(stopEvent)
		return nil, err
	}

	var handle uintptr
	hr, _, _ := l.open.Call(
		uintptr(unsafe.Pointer(&handle)),
		uintptr(unsafe.Pointer(namePtr)),
		0, // hWnd
		0, // UserEventWin32
		uintptr(dataEvent),
		0, // ConfigIndex
	)
	if err = hresult("SimConnect_Open", hr); err != nil {
		_ = windows.CloseHandle(dataEvent)
		_ = windows.CloseHandle(stopEvent)
		return nil, err
	}

	c := &nativeConn{
		lib:       l,
		handle:    handle,
		dataEvent: dataEvent,
		stopEvent: stopEvent,
	}

	c.wg.Add(1)
	go c.watch(ready)

	return c, nil
}

type nativeConn struct {
	lib       *NativeLibrary
	handle    uintptr
	dataEvent windows.Handle
	stopEvent windows.Handle
	wg        sync.WaitGroup
}

// watch forwards the SimConnect data event to the dispatcher.
func (c *nativeConn) watch(ready chan<- struct{}) {
	defer c.wg.Done()

	handles := []windows.Handle{c.dataEvent, c.stopEvent}
	for {
		ev, err := windows.WaitForMultipleObjects(handles, false, windows.INFINITE)
		if err != nil || ev != windows.WAIT_OBJECT_0 {
			return
		}

		select {
		case ready <- struct{}{}:
		default:
		}
	}
}

func (c *nativeConn) AddToDataDefinition(defineID uint32, name, units string, dataType DataType, epsilon float32) error {
	namePtr, err := windows.BytePtrFromString(name)
	if err != nil {
		return err
	}

	var unitsPtr *byte
	if units != "" {
		if unitsPtr, err = windows.BytePtrFromString(units); err != nil {
			return err
		}
	}

	hr, _, _ := c.lib.addToDataDefinition.Call(
		c.handle,
		uintptr(defineID),
		uintptr(unsafe.Pointer(namePtr)),
		uintptr(unsafe.Pointer(unitsPtr)),
		uintptr(dataType),
		uintptr(math.Float32bits(epsilon)),
		uintptr(unusedDatumID),
	)
	return hresult("SimConnect_AddToDataDefinition", hr)
}

func (c *nativeConn) ClearDataDefinition(defineID uint32) error {
	hr, _, _ := c.lib.clearDataDefinition.Call(c.handle, uintptr(defineID))
	return hresult("SimConnect_ClearDataDefinition", hr)
}

func (c *nativeConn) RequestDataOnSimObject(requestID, defineID, objectID uint32, period Period, flags DataRequestFlag) error {
	hr, _, _ := c.lib.requestDataOnSimObject.Call(
		c.handle,
		uintptr(requestID),
		uintptr(defineID),
		uintptr(objectID),
		uintptr(period),
		uintptr(flags),
		0, // origin
		0, // interval
		0, // limit
	)
	return hresult("SimConnect_RequestDataOnSimObject", hr)
}

func (c *nativeConn) SubscribeToSystemEvent(eventID uint32, name string) error {
	namePtr, err := windows.BytePtrFromString(name)
	if err != nil {
		return err
	}

	hr, _, _ := c.lib.subscribeToSystemEvent.Call(c.handle, uintptr(eventID), uintptr(unsafe.Pointer(namePtr)))
	return hresult("SimConnect_SubscribeToSystemEvent", hr)
}

func (c *nativeConn) UnsubscribeFromSystemEvent(eventID uint32) error {
	hr, _, _ := c.lib.unsubscribeFromSystemEvent.Call(c.handle, uintptr(eventID))
	return hresult("SimConnect_UnsubscribeFromSystemEvent", hr)
}

func (c *nativeConn) GetNextDispatch() ([]byte, bool, error) {
	var ptr uintptr
	var size uint32

	hr, _, _ := c.lib.getNextDispatch.Call(
		c.handle,
		uintptr(unsafe.Pointer(&ptr)),
		uintptr(unsafe.Pointer(&size)),
	)
	if uint32(hr) == hresultFail {
		return nil, false, nil
	}
	if err := hresult("SimConnect_GetNextDispatch", hr); err != nil {
		return nil, false, err
	}
	if ptr == 0 || size == 0 {
		return nil, false, nil
	}

	// the buffer is owned by SimConnect and reused by the next call
	p := make([]byte, size)
	copy(p, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size))
	return p, true, nil
}

func (c *nativeConn) Close() error {
	_ = windows.SetEvent(c.stopEvent)
	c.wg.Wait()

	hr, _, _ := c.lib.close.Call(c.handle)

	_ = windows.CloseHandle(c.dataEvent)
	_ = windows.CloseHandle(c.stopEvent)

	return hresult("SimConnect_Close", hr)
}

func hresult(call string, hr uintptr) error {
	if int32(hr) < 0 {
		return fmt.Errorf("%s failed: HRESULT 0x%08X", call, uint32(hr))
	}
	return nil
}
