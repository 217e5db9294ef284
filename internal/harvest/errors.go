package harvest

import "fmt"

// FetchFailure reports a URL whose fetch exhausted its retry budget or
// failed on a non-retryable status. It is a value, not a panic: expected
// network and HTTP errors always surface through it.
type FetchFailure struct {
	URL     string
	LastErr error
}

func (f *FetchFailure) Error() string {
	return fmt.Sprintf("fetch %s: %v", f.URL, f.LastErr)
}

func (f *FetchFailure) Unwrap() error {
	return f.LastErr
}

// DiscoveryFailure means page 1 of a category could not be fetched, so
// the page range is unknowable. Fatal for that category only; the other
// category proceeds.
type DiscoveryFailure struct {
	Category Category
	Err      error
}

func (d *DiscoveryFailure) Error() string {
	return fmt.Sprintf("discover %s listing: %v", d.Category, d.Err)
}

func (d *DiscoveryFailure) Unwrap() error {
	return d.Err
}
