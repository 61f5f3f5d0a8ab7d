package main

import "iter"

// mapRecords converts each record of seq with f; f returning false drops the record.
func mapRecords[T, U any](seq iter.Seq2[T, error], f func(T) (U, bool)) iter.Seq2[U, error] {
	return func(yield func(U, error) bool) {
		for rec, err := range seq {
			if err != nil {
				var zero U
				yield(zero, err)
				return
			}
			out, ok := f(rec)
			if !ok {
				continue
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}
