package reader

import (
	"bytes"
	"regexp"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	metaCharset = regexp.MustCompile(`(?i)charset\s*=\s*["']?\s*([A-Za-z0-9_\-]+)`)
	utf8BOM     = []byte{0xEF, 0xBB, 0xBF}
)

// toUTF8 decodes text exports. A declared charset is honored; undeclared
// non-UTF-8 input is assumed to be EUC-KR (CP949), which Korean banks use.
func toUTF8(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return data[len(utf8BOM):], nil
	}

	enc := declaredEncoding(data)
	if enc == nil {
		if utf8.Valid(data) {
			return data, nil
		}
		enc = korean.EUCKR
	}
	if enc == unicode.UTF8 {
		return data, nil
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func declaredEncoding(data []byte) encoding.Encoding {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	m := metaCharset.FindSubmatch(head)
	if m == nil {
		return nil
	}
	enc, err := htmlindex.Get(string(m[1]))
	if err != nil {
		return nil
	}
	return enc
}
