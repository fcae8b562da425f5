package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of an object is inspected before parsing.
const sniffLen = 3072

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var errUnreadableContent = errors.New("content is not text")

// openText strips a UTF-8 byte order mark and rejects objects whose leading
// bytes do not look like text. The returned reader yields the whole body
// minus the BOM.
func openText(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if bytes.HasPrefix(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
		head = head[len(utf8BOM):]
	}

	if len(head) > 0 && !isText(head) {
		return nil, errUnreadableContent
	}
	return br, nil
}

func isText(head []byte) bool {
	for mt := mimetype.Detect(head); mt != nil; mt = mt.Parent() {
		if mt.Is("text/plain") {
			return true
		}
	}
	return false
}
