package minio

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/synchronoux/internal/adapters/driven/middlestore"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

const testBucket = "exchange"

// fakeServer answers the path-style S3 calls minio-go makes.
type fakeServer struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	meta    map[string]string
	deleted []string
}

type listResult struct {
	XMLName     xml.Name     `xml:"ListBucketResult"`
	Name        string       `xml:"Name"`
	Prefix      string       `xml:"Prefix"`
	KeyCount    int          `xml:"KeyCount"`
	MaxKeys     int          `xml:"MaxKeys"`
	IsTruncated bool         `xml:"IsTruncated"`
	Contents    []listObject `xml:"Contents"`
}

type listObject struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int    `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

type deleteRequest struct {
	Objects []struct {
		Key string `xml:"Key"`
	} `xml:"Object"`
}

type deleteResult struct {
	XMLName xml.Name `xml:"DeleteResult"`
	Deleted []struct {
		Key string `xml:"Key"`
	} `xml:"Deleted"`
}

func newFakeServer(t *testing.T) (*fakeServer, *Store) {
	t.Helper()
	f := &fakeServer{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		meta:    make(map[string]string),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	store, err := New(middlestore.Options{Bucket: testBucket, PullPrefix: "inbound"}, Config{
		Endpoint: strings.TrimPrefix(srv.URL, "http://"),
		Region:   "us-east-1",
	})
	require.NoError(t, err)
	return f, store
}

func (f *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/"+testBucket), "/")
	switch {
	case key == "" && r.Method == http.MethodGet:
		f.list(w, r)
	case key == "" && r.Method == http.MethodPost:
		f.remove(w, r)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		f.meta[key] = r.Header.Get("X-Amz-Meta-Model")
		w.Header().Set("ETag", `"etag-`+key+`"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		content, ok := f.objects[key]
		if !ok {
			writeError(w, http.StatusNotFound, "NoSuchKey", key)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"etag"`)
		_, _ = w.Write(content)
	default:
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", key)
	}
}

func (f *fakeServer) list(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := listResult{Name: testBucket, Prefix: prefix, KeyCount: len(keys), MaxKeys: 1000}
	for _, k := range keys {
		out.Contents = append(out.Contents, listObject{
			Key:          k,
			LastModified: "2025-01-01T00:00:00.000Z",
			ETag:         `"etag"`,
			Size:         len(f.objects[k]),
			StorageClass: "STANDARD",
		})
	}
	writeXML(w, out)
}

func (f *fakeServer) remove(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := xml.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "MalformedXML", "")
		return
	}
	var out deleteResult
	for _, obj := range req.Objects {
		delete(f.objects, obj.Key)
		f.deleted = append(f.deleted, obj.Key)
		out.Deleted = append(out.Deleted, struct {
			Key string `xml:"Key"`
		}{Key: obj.Key})
	}
	writeXML(w, out)
}

func (f *fakeServer) put(keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		f.objects[k] = []byte("[]")
	}
}

func (f *fakeServer) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeXML(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, xml.Header)
	_ = xml.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, key string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `%s<Error><Code>%s</Code><Message>%s</Message><Key>%s</Key><BucketName>%s</BucketName></Error>`,
		xml.Header, code, code, key, testBucket)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(middlestore.Options{}, Config{Endpoint: "localhost:9000"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New(middlestore.Options{Bucket: testBucket}, Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUploadString(t *testing.T) {
	fake, store := newFakeServer(t)

	file, err := store.UploadString(context.Background(), `[{"id":1}]`, "outbound/push_1.json", "users", nil)
	require.NoError(t, err)
	assert.Equal(t, "outbound/push_1.json", file.Locator)
	assert.Equal(t, int64(10), file.Size)
	assert.Equal(t, "etag-outbound/push_1.json", file.ETag)

	assert.Equal(t, []byte(`[{"id":1}]`), fake.objects["outbound/push_1.json"])
	assert.Equal(t, "application/json", fake.types["outbound/push_1.json"])
	assert.Equal(t, "users", fake.meta["outbound/push_1.json"])
}

func TestWaitAction(t *testing.T) {
	fake, store := newFakeServer(t)
	ctx := context.Background()

	fake.put("inbound/push_2.json", "inbound/push_11.json")
	_, ready, err := store.WaitAction(ctx, nil)
	require.NoError(t, err)
	assert.False(t, ready)

	fake.put("inbound/terminator.json", "outbound/terminator.json")
	locators, ready, err := store.WaitAction(ctx, nil)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, []string{"inbound/push_2.json", "inbound/push_11.json", "inbound/terminator.json"}, locators)
}

func TestLoadFoundData(t *testing.T) {
	fake, store := newFakeServer(t)
	fake.put("inbound/push_1.json", "inbound/terminator.json")

	var got []string
	err := store.LoadFoundData(context.Background(), []string{"inbound/push_1.json", "inbound/terminator.json"},
		func(_ context.Context, locator string, content []byte) error {
			got = append(got, locator+"="+string(content))
			return nil
		}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"inbound/push_1.json=[]", "inbound/terminator.json=[]"}, got)
}

func TestLoadFoundData_Missing(t *testing.T) {
	_, store := newFakeServer(t)

	err := store.LoadFoundData(context.Background(), []string{"inbound/gone.json"},
		func(context.Context, string, []byte) error { return nil }, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCleanup_Pull(t *testing.T) {
	fake, store := newFakeServer(t)
	fake.put("inbound/push_1.json", "inbound/terminator.json", "outbound/push_1.json")

	require.NoError(t, store.Cleanup(context.Background(), domain.CleanupPull, nil))
	assert.Equal(t, []string{"outbound/push_1.json"}, fake.keys())
	assert.ElementsMatch(t, []string{"inbound/push_1.json", "inbound/terminator.json"}, fake.deleted)
}

func TestCleanup_PushKeepsExport(t *testing.T) {
	fake, store := newFakeServer(t)
	fake.put("inbound/push_1.json")

	require.NoError(t, store.Cleanup(context.Background(), domain.CleanupPush, nil))
	assert.Equal(t, []string{"inbound/push_1.json"}, fake.keys())
	assert.Empty(t, fake.deleted)
}
