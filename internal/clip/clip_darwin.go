//go:build darwin

package clip

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
// #include <stdlib.h>
// #include <string.h>
//
// static NSInteger cliptext_change_count(void) {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
//
// // Returns a malloc'd copy of the data for uti, or NULL with *n = -1 when
// // the type is absent.
// static void *cliptext_read_type(const char *uti, int *n) {
//     @autoreleasepool {
//         NSData *d = [[NSPasteboard generalPasteboard] dataForType:[NSString stringWithUTF8String:uti]];
//         if (d == nil) { *n = -1; return NULL; }
//         *n = (int)[d length];
//         if (*n == 0) return NULL;
//         void *buf = malloc(*n);
//         memcpy(buf, [d bytes], *n);
//         return buf;
//     }
// }
//
// // Returns every URL on the pasteboard as a newline-separated uri-list.
// static char *cliptext_read_urls(void) {
//     @autoreleasepool {
//         NSArray *urls = [[NSPasteboard generalPasteboard] readObjectsForClasses:@[[NSURL class]] options:nil];
//         if (urls == nil || [urls count] == 0) return NULL;
//         NSMutableArray *lines = [NSMutableArray arrayWithCapacity:[urls count]];
//         for (NSURL *u in urls) [lines addObject:[u absoluteString]];
//         return strdup([[lines componentsJoinedByString:@"\n"] UTF8String]);
//     }
// }
//
// static void cliptext_clear(void) {
//     [[NSPasteboard generalPasteboard] clearContents];
// }
//
// static int cliptext_set_data(const char *uti, const void *data, int n) {
//     @autoreleasepool {
//         NSData *d = [NSData dataWithBytes:data length:n];
//         return [[NSPasteboard generalPasteboard] setData:d forType:[NSString stringWithUTF8String:uti]] ? 1 : 0;
//     }
// }
//
// static int cliptext_write_urls(const char *list) {
//     @autoreleasepool {
//         NSMutableArray *objs = [NSMutableArray array];
//         for (NSString *line in [[NSString stringWithUTF8String:list] componentsSeparatedByCharactersInSet:[NSCharacterSet newlineCharacterSet]]) {
//             if ([line length] == 0) continue;
//             NSURL *u = [NSURL URLWithString:line];
//             if (u != nil) [objs addObject:u];
//         }
//         return [[NSPasteboard generalPasteboard] writeObjects:objs] ? 1 : 0;
//     }
// }
import "C"

import (
	"fmt"
	"log/slog"
	"unsafe"

	"golang.design/x/clipboard"

	"go.klb.dev/cliptext/internal/content"
)

// Pasteboard type identifiers for the representations beyond text and PNG.
var darwinTypes = map[string]string{
	content.MIMEText: "public.utf8-plain-text",
	content.MIMEPNG:  "public.png",
	content.MIMETIFF: "public.tiff",
	content.MIMERTF:  "public.rtf",
	content.MIMEHTML: "public.html",
}

type darwinBackend struct{}

// New returns the macOS clipboard backend.
// clipboard.Init is called here rather than in init() so that CLI sub-commands
// that never construct a Backend don't log spurious warnings.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard init failed", "err", err)
	}
	return darwinBackend{}
}

func (darwinBackend) Name() string { return "macOS NSPasteboard" }

func (darwinBackend) ChangeCount() int64 { return int64(C.cliptext_change_count()) }

func (darwinBackend) Read() (content.Payload, error) {
	p := content.Payload{}
	if urls := C.cliptext_read_urls(); urls != nil {
		p[content.MIMEURIList] = []byte(C.GoString(urls))
		C.free(unsafe.Pointer(urls))
	}
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		p[content.MIMEText] = text
	}
	if img := clipboard.Read(clipboard.FmtImage); img != nil {
		p[content.MIMEPNG] = img
	}
	for _, mime := range []string{content.MIMETIFF, content.MIMERTF, content.MIMEHTML} {
		if data, ok := readType(darwinTypes[mime]); ok {
			p[mime] = data
		}
	}
	return p, nil
}

func readType(uti string) ([]byte, bool) {
	cuti := C.CString(uti)
	defer C.free(unsafe.Pointer(cuti))
	var n C.int
	buf := C.cliptext_read_type(cuti, &n)
	if n < 0 {
		return nil, false
	}
	if buf == nil {
		return []byte{}, true
	}
	defer C.free(buf)
	return C.GoBytes(buf, n), true
}

// Write clears the pasteboard once and then attaches every representation,
// so the change counter moves exactly once.
func (darwinBackend) Write(p content.Payload) error {
	if len(p) == 0 {
		return fmt.Errorf("write clipboard: empty payload")
	}
	p, err := pngOnly(p, content.MIMETIFF)
	if err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	C.cliptext_clear()
	for _, mime := range p.Types() {
		data := p[mime]
		if mime == content.MIMEURIList {
			list := C.CString(string(data))
			ok := C.cliptext_write_urls(list)
			C.free(unsafe.Pointer(list))
			if ok == 0 {
				return fmt.Errorf("write clipboard: file urls rejected")
			}
			continue
		}
		uti, known := darwinTypes[mime]
		if !known {
			return fmt.Errorf("write clipboard: unsupported MIME type: %s", mime)
		}
		cuti := C.CString(uti)
		var ptr unsafe.Pointer
		if len(data) > 0 {
			ptr = C.CBytes(data)
		}
		ok := C.cliptext_set_data(cuti, ptr, C.int(len(data)))
		C.free(unsafe.Pointer(cuti))
		if ptr != nil {
			C.free(ptr)
		}
		if ok == 0 {
			return fmt.Errorf("write clipboard: %s rejected", mime)
		}
	}
	return nil
}

func (darwinBackend) Close() {}
