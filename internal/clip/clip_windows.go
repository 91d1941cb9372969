//go:build windows

package clip

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"syscall"
	"time"
	"unsafe"

	"golang.design/x/clipboard"
	"golang.org/x/sys/windows"

	"go.klb.dev/cliptext/internal/content"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")
	shell32  = windows.NewLazySystemDLL("shell32.dll")

	getClipboardSequenceNumber = user32.NewProc("GetClipboardSequenceNumber")
	openClipboard              = user32.NewProc("OpenClipboard")
	closeClipboard             = user32.NewProc("CloseClipboard")
	emptyClipboard             = user32.NewProc("EmptyClipboard")
	getClipboardData           = user32.NewProc("GetClipboardData")
	setClipboardData           = user32.NewProc("SetClipboardData")
	isClipboardFormatAvailable = user32.NewProc("IsClipboardFormatAvailable")
	registerClipboardFormatW   = user32.NewProc("RegisterClipboardFormatW")
	globalAlloc                = kernel32.NewProc("GlobalAlloc")
	globalLock                 = kernel32.NewProc("GlobalLock")
	globalUnlock               = kernel32.NewProc("GlobalUnlock")
	globalSize                 = kernel32.NewProc("GlobalSize")
	dragQueryFileW             = shell32.NewProc("DragQueryFileW")
)

const (
	cfUnicodeText = 13
	cfHDrop       = 15
	gmemMoveable  = 0x0002
)

// dropFiles mirrors the DROPFILES header that precedes a CF_HDROP path list.
type dropFiles struct {
	pFiles uint32
	ptX    int32
	ptY    int32
	fNC    int32
	fWide  int32
}

type windowsBackend struct {
	cfHTML uintptr
	cfRTF  uintptr
}

// New returns the Windows clipboard backend.
// clipboard.Init is called here rather than in init() so that CLI sub-commands
// that never construct a Backend don't log spurious warnings.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard init failed", "err", err)
	}
	return &windowsBackend{
		cfHTML: registerFormat("HTML Format"),
		cfRTF:  registerFormat("Rich Text Format"),
	}
}

func registerFormat(name string) uintptr {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0
	}
	id, _, _ := registerClipboardFormatW.Call(uintptr(unsafe.Pointer(p)))
	return id
}

func (b *windowsBackend) Name() string { return "Windows Clipboard" }

func (b *windowsBackend) ChangeCount() int64 {
	n, _, _ := getClipboardSequenceNumber.Call()
	return int64(uint32(n))
}

func (b *windowsBackend) Read() (content.Payload, error) {
	p := content.Payload{}
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		p[content.MIMEText] = text
	}
	if img := clipboard.Read(clipboard.FmtImage); img != nil {
		p[content.MIMEPNG] = img
	}

	if err := open(); err != nil {
		return p, err
	}
	defer closeClipboard.Call()

	if paths := readDrop(); len(paths) > 0 {
		p[content.MIMEURIList] = content.EncodeFileList(paths)
	}
	if data, ok := readGlobal(b.cfRTF); ok {
		p[content.MIMERTF] = bytes.TrimRight(data, "\x00")
	}
	if data, ok := readGlobal(b.cfHTML); ok {
		if frag, ok := htmlFragment(data); ok {
			p[content.MIMEHTML] = frag
		}
	}
	return p, nil
}

func available(format uintptr) bool {
	if format == 0 {
		return false
	}
	r, _, _ := isClipboardFormatAvailable.Call(format)
	return r != 0
}

// readGlobal copies the HGLOBAL behind format. The clipboard must be open.
func readGlobal(format uintptr) ([]byte, bool) {
	if !available(format) {
		return nil, false
	}
	h, _, _ := getClipboardData.Call(format)
	if h == 0 {
		return nil, false
	}
	l, _, _ := globalLock.Call(h)
	if l == 0 {
		return nil, false
	}
	defer globalUnlock.Call(h)
	n, _, _ := globalSize.Call(h)
	return bytes.Clone(unsafe.Slice((*byte)(unsafe.Pointer(l)), n)), true
}

// readDrop lists the paths of a CF_HDROP. The clipboard must be open.
func readDrop() []string {
	if !available(cfHDrop) {
		return nil
	}
	h, _, _ := getClipboardData.Call(cfHDrop)
	if h == 0 {
		return nil
	}
	n, _, _ := dragQueryFileW.Call(h, 0xFFFFFFFF, 0, 0)
	paths := make([]string, 0, n)
	for i := uintptr(0); i < n; i++ {
		size, _, _ := dragQueryFileW.Call(h, i, 0, 0)
		buf := make([]uint16, size+1)
		dragQueryFileW.Call(h, i, uintptr(unsafe.Pointer(&buf[0])), size+1)
		paths = append(paths, windows.UTF16ToString(buf))
	}
	return paths
}

// htmlFragment extracts the fragment from a CF_HTML description block.
func htmlFragment(data []byte) ([]byte, bool) {
	start, ok1 := htmlOffset(data, "StartFragment:")
	end, ok2 := htmlOffset(data, "EndFragment:")
	if !ok1 || !ok2 || start < 0 || end > len(data) || start >= end {
		return nil, false
	}
	return data[start:end], true
}

func htmlOffset(data []byte, key string) (int, bool) {
	i := bytes.Index(data, []byte(key))
	if i < 0 {
		return 0, false
	}
	rest := data[i+len(key):]
	j := bytes.IndexAny(rest, "\r\n")
	if j < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(string(bytes.TrimSpace(rest[:j])))
	return n, err == nil
}

// htmlDescription wraps frag in the CF_HTML header Windows applications expect.
func htmlDescription(frag []byte) []byte {
	const header = "Version:0.9\r\nStartHTML:%010d\r\nEndHTML:%010d\r\nStartFragment:%010d\r\nEndFragment:%010d\r\n"
	const pre, post = "<html><body><!--StartFragment-->", "<!--EndFragment--></body></html>"
	headerLen := len(fmt.Sprintf(header, 0, 0, 0, 0))
	startFrag := headerLen + len(pre)
	endFrag := startFrag + len(frag)
	total := endFrag + len(post)
	var buf bytes.Buffer
	fmt.Fprintf(&buf, header, headerLen, total, startFrag, endFrag)
	buf.WriteString(pre)
	buf.Write(frag)
	buf.WriteString(post)
	return buf.Bytes()
}

// Write stores every representation under one OpenClipboard session so the
// sequence number moves once. Lone text and images go through
// golang.design/x/clipboard, which also handles the DIB conversion.
func (b *windowsBackend) Write(p content.Payload) error {
	p, err := pngOnly(p)
	if err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	if len(p) == 1 {
		if data, ok := p[content.MIMEPNG]; ok {
			clipboard.Write(clipboard.FmtImage, data)
			return nil
		}
		if data, ok := p[content.MIMEText]; ok {
			clipboard.Write(clipboard.FmtText, data)
			return nil
		}
	}

	if err := open(); err != nil {
		return err
	}
	defer closeClipboard.Call()
	emptyClipboard.Call()

	for _, mime := range p.Types() {
		data := p[mime]
		var err error
		switch mime {
		case content.MIMEText:
			err = setUnicodeText(string(data))
		case content.MIMEURIList:
			paths, ok := content.ParseFileList(data)
			if !ok {
				return fmt.Errorf("write clipboard: uri-list holds non-file entries")
			}
			err = setDrop(paths)
		case content.MIMERTF:
			err = setGlobal(b.cfRTF, append(bytes.Clone(data), 0))
		case content.MIMEHTML:
			err = setGlobal(b.cfHTML, append(htmlDescription(data), 0))
		default:
			return fmt.Errorf("write clipboard: unsupported MIME type: %s", mime)
		}
		if err != nil {
			return fmt.Errorf("write clipboard %s: %w", mime, err)
		}
	}
	return nil
}

func (b *windowsBackend) Close() {}

// open takes the clipboard, retrying while another process holds it.
func open() error {
	for i := 0; i < 10; i++ {
		r, _, _ := openClipboard.Call(0)
		if r != 0 {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("open clipboard after retries: %w", ErrUnavailable)
}

func setUnicodeText(text string) error {
	utf16, err := windows.UTF16FromString(text)
	if err != nil {
		return fmt.Errorf("UTF16 conversion failed: %w", err)
	}
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&utf16[0])), len(utf16)*2)
	return setGlobal(cfUnicodeText, raw)
}

func setDrop(paths []string) error {
	var list []uint16
	for _, p := range paths {
		u, err := windows.UTF16FromString(p)
		if err != nil {
			return err
		}
		list = append(list, u...)
	}
	list = append(list, 0)

	hdr := dropFiles{pFiles: uint32(unsafe.Sizeof(dropFiles{})), fWide: 1}
	buf := make([]byte, int(hdr.pFiles)+len(list)*2)
	copy(buf, unsafe.Slice((*byte)(unsafe.Pointer(&hdr)), hdr.pFiles))
	copy(buf[hdr.pFiles:], unsafe.Slice((*byte)(unsafe.Pointer(&list[0])), len(list)*2))
	return setGlobal(cfHDrop, buf)
}

// setGlobal copies data into a movable HGLOBAL and hands it to the clipboard,
// which takes ownership on success.
func setGlobal(format uintptr, data []byte) error {
	if format == 0 {
		return fmt.Errorf("clipboard format not registered")
	}
	h, _, err := globalAlloc.Call(gmemMoveable, uintptr(len(data)))
	if h == 0 {
		return fmt.Errorf("GlobalAlloc failed: %w", err)
	}
	l, _, err := globalLock.Call(h)
	if l == 0 {
		return fmt.Errorf("GlobalLock failed: %w", err)
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(l)), len(data)), data)
	globalUnlock.Call(h)

	r, _, err := setClipboardData.Call(format, h)
	if r == 0 {
		if err != nil && err != syscall.Errno(0) {
			return fmt.Errorf("SetClipboardData failed: %w", err)
		}
		return fmt.Errorf("SetClipboardData failed")
	}
	return nil
}
