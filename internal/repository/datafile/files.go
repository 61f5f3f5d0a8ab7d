// Package datafile persists pipeline artifacts (corpora, query sets, reports, JSON Lines
// record streams) on the local filesystem.
package datafile

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kailas-cloud/citesearch/internal/domain"
	"github.com/kailas-cloud/citesearch/internal/domain/corpus"
	"github.com/kailas-cloud/citesearch/internal/domain/queryset"
)

// maxLine bounds one JSON Lines record; embedded documents can be large.
const maxLine = 64 << 20

// WriteJSON writes v to path atomically (temp file + rename).
func WriteJSON(path string, v any) error {
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// ReadJSON decodes the file at path into v. A missing file yields domain.ErrNotFound.
func ReadJSON(path string, v any) error {
	f, err := open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// WriteLines writes one JSON record per line atomically and returns the record count.
// An error yielded by the sequence aborts the write and leaves path untouched.
func WriteLines[T any](path string, records iter.Seq2[T, error]) (int, error) {
	n := 0
	err := writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for rec, err := range records {
			if err != nil {
				return err
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// ReadLines streams JSON records from a JSON Lines file. Blank lines are skipped.
func ReadLines[T any](path string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		f, err := open(path)
		if err != nil {
			yield(zero, err)
			return
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 1<<20), maxLine)
		line := 0
		for sc.Scan() {
			line++
			if len(sc.Bytes()) == 0 {
				continue
			}
			var rec T
			if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
				yield(zero, fmt.Errorf("%s:%d: %w", path, line, err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(zero, fmt.Errorf("read %s: %w", path, err))
		}
	}
}

// Slice collects a record stream, stopping at the first error.
func Slice[T any](records iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for rec, err := range records {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// SaveCorpus writes the corpus as one line of JSON mapping each DOI to its unit records, in
// corpus order, and the embedding model id to the sidecar.
func SaveCorpus(path string, c *corpus.Corpus) error {
	docs := c.Documents()
	err := writeObject(path, len(docs), func(i int) (string, any) {
		return docs[i].DOI, unitsToDTO(docs[i])
	})
	if err != nil {
		return err
	}
	return writeMeta(path, c.Model())
}

// LoadCorpus reads and validates a corpus file. Document order is the key order in the file.
// Without a sidecar the model id is empty.
func LoadCorpus(path string) (*corpus.Corpus, error) {
	var docs []corpus.Document
	err := readObject(path, func(key string, dec *json.Decoder) error {
		var units []unitDTO
		if err := dec.Decode(&units); err != nil {
			return fmt.Errorf("document %q: %w", key, err)
		}
		docs = append(docs, documentFromDTO(key, units))
		return nil
	})
	if err != nil {
		return nil, err
	}
	model, err := readMeta(path)
	if err != nil {
		return nil, err
	}
	c, err := corpus.Build(docs, model)
	if err != nil {
		return nil, fmt.Errorf("load corpus %s: %w", path, err)
	}
	return c, nil
}

// SaveQuerySet writes one line of JSON mapping each query index to {text, dois, vector}, and
// the model id, once embedded, to the sidecar.
func SaveQuerySet(path string, s *queryset.Set) error {
	queries := s.Queries()
	err := writeObject(path, len(queries), func(i int) (string, any) {
		return strconv.Itoa(i), queryToDTO(queries[i])
	})
	if err != nil {
		return err
	}
	return writeMeta(path, s.Model())
}

// LoadQuerySet reads and validates a query set file. Keys must be the indexes 0..M-1 in any
// order.
func LoadQuerySet(path string) (*queryset.Set, error) {
	byIndex := make(map[int]queryDTO)
	err := readObject(path, func(key string, dec *json.Decoder) error {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 {
			return fmt.Errorf("query key %q is not an index: %w", key, domain.ErrInvalidRequest)
		}
		if _, dup := byIndex[i]; dup {
			return fmt.Errorf("query %d appears twice: %w", i, domain.ErrInvalidRequest)
		}
		var q queryDTO
		if err := dec.Decode(&q); err != nil {
			return fmt.Errorf("query %d: %w", i, err)
		}
		byIndex[i] = q
		return nil
	})
	if err != nil {
		return nil, err
	}

	queries := make([]queryset.Query, len(byIndex))
	for i := range queries {
		q, ok := byIndex[i]
		if !ok {
			return nil, fmt.Errorf("load queries %s: missing query %d: %w", path, i, domain.ErrInvalidRequest)
		}
		queries[i] = queryFromDTO(i, q)
	}
	model, err := readMeta(path)
	if err != nil {
		return nil, err
	}
	s, err := queryset.FromQueries(queries, model)
	if err != nil {
		return nil, fmt.Errorf("load queries %s: %w", path, err)
	}
	return s, nil
}

// MetaPath is the sidecar file holding the model id of a corpus or query file.
func MetaPath(path string) string { return path + ".meta.json" }

func writeMeta(path, model string) error {
	return WriteJSON(MetaPath(path), metaFile{Model: model})
}

func readMeta(path string) (string, error) {
	var m metaFile
	if err := ReadJSON(MetaPath(path), &m); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return m.Model, nil
}

// writeObject writes a single-line JSON object whose n members come from member, in order.
func writeObject(path string, n int, member func(i int) (string, any)) error {
	return writeAtomic(path, func(w io.Writer) error {
		if _, err := io.WriteString(w, "{"); err != nil {
			return err
		}
		for i := range n {
			key, v := member(i)
			k, err := json.Marshal(key)
			if err != nil {
				return err
			}
			val, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("member %s: %w", key, err)
			}
			if i > 0 {
				k = append([]byte{','}, k...)
			}
			k = append(k, ':')
			if _, err := w.Write(append(k, val...)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "}")
		return err
	})
}

// readObject streams the members of the top-level JSON object in path, in file order.
func readObject(path string, member func(key string, dec *json.Decoder) error) error {
	f, err := open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return fmt.Errorf("decode %s: expected a JSON object: %w", path, errors.Join(err, domain.ErrInvalidRequest))
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		key, _ := tok.(string)
		if err := member(key, dec); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func writeAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
