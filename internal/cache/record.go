package cache

import (
	"bytes"
	"encoding/gob"
	"net/http"
	"time"
)

// record 是磁盘/数据库中条目的序列化形式。
type record struct {
	URL      string
	Status   int
	Header   http.Header
	Body     []byte
	RespURL  string
	StoredAt int64
}

func newRecord(req Request, resp *Response) record {
	return record{
		URL:      req.URL,
		Status:   resp.Status,
		Header:   resp.Header,
		Body:     resp.Body,
		RespURL:  resp.URL,
		StoredAt: time.Now().UTC().UnixNano(),
	}
}

func (r record) request() Request {
	return Request{Method: http.MethodGet, URL: r.URL}
}

func (r record) response() *Response {
	return &Response{
		Status: r.Status,
		Header: r.Header,
		Body:   r.Body,
		URL:    r.RespURL,
	}
}

func encodeRecord(r record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(b []byte) (record, error) {
	var r record
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&r)
	return r, err
}
