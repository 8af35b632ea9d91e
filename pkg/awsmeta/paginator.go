package awsmeta

import (
	"context"
	"errors"
	"fmt"
)

// Static errors for err113 compliance.
var (
	ErrNoMoreItems = errors.New("no more items")
	ErrNoMorePages = errors.New("no more pages")
)

// Page is one step of a paginated result sequence.
type Page struct {
	// Result is the raw decoded output of the page's call.
	Result *Result

	// Items holds the elements extracted from the model's result key(s). A
	// page whose result key is absent yields an empty Items slice, not an
	// error.
	Items []interface{}
}

// Pager walks a list-type operation page by page, chaining calls through the
// continuation tokens declared in the operation's pagination metadata. The
// sequence is lazy, finite, strictly sequential, and non-restartable: page
// N+1 is not requested until page N's cursor has been extracted.
type Pager struct {
	exec        Executor
	base        *Command
	config      *PaginationConfig
	outputToken []*PathExpr
	resultKey   []*PathExpr
	moreResults *PathExpr

	cursor   map[string]interface{}
	started  bool
	finished bool
}

// NewPager builds a page sequence over the given operation. An operation
// whose model carries no output token is not paginable; that is a contract
// violation reported here, before any request is issued, for both page- and
// item-level iteration.
func NewPager(exec Executor, model *ServiceModel, operation string, params map[string]interface{}) (*Pager, error) {
	cmd, err := NewCommand(model, operation, params)
	if err != nil {
		return nil, err
	}

	if !cmd.Model.Paginable() {
		return nil, &Error{
			Kind:      ErrorKindPaginationConfig,
			Operation: operation,
			Message:   fmt.Sprintf("operation %q has no pagination metadata", operation),
			Command:   cmd,
		}
	}

	pager := &Pager{
		exec:   exec,
		base:   cmd,
		config: cmd.Model.Pagination,
	}

	pager.outputToken, err = compilePaths(pager.config.OutputToken)
	if err != nil {
		return nil, &Error{Kind: ErrorKindPaginationConfig, Operation: operation, Message: err.Error(), Cause: err}
	}

	pager.resultKey, err = compilePaths(pager.config.ResultKey)
	if err != nil {
		return nil, &Error{Kind: ErrorKindPaginationConfig, Operation: operation, Message: err.Error(), Cause: err}
	}

	if pager.config.MoreResults != "" {
		pager.moreResults, err = CompilePath(pager.config.MoreResults)
		if err != nil {
			return nil, &Error{Kind: ErrorKindPaginationConfig, Operation: operation, Message: err.Error(), Cause: err}
		}
	}

	return pager, nil
}

func compilePaths(sources StringList) ([]*PathExpr, error) {
	compiled := make([]*PathExpr, 0, len(sources))

	for _, source := range sources {
		pathExpr, err := CompilePath(source)
		if err != nil {
			return nil, err
		}

		compiled = append(compiled, pathExpr)
	}

	return compiled, nil
}

// HasNext reports whether another page can be requested. It is true before
// the first fetch and becomes false once the server stops returning a cursor
// (or reports no more results via the truncation flag).
func (p *Pager) HasNext() bool {
	return !p.finished
}

// NextPage executes the next call in the chain and returns its page.
// Exhaustion is signaled by ErrNoMorePages once HasNext is false.
func (p *Pager) NextPage(ctx context.Context) (*Page, error) {
	if p.finished {
		return nil, ErrNoMorePages
	}

	cmd := p.base
	if p.started {
		cmd = p.base.withParams(p.cursor)
	}

	p.started = true

	result, err := p.exec.Execute(ctx, cmd)
	if err != nil {
		p.finished = true

		return nil, err
	}

	p.advanceCursor(result)

	return &Page{
		Result: result,
		Items:  p.extractItems(result),
	}, nil
}

// advanceCursor pulls the next continuation token(s) out of the page and
// decides whether the sequence is over. The engine trusts the model: a
// pagination config without output tokens was rejected at construction.
func (p *Pager) advanceCursor(result *Result) {
	next := make(map[string]interface{}, len(p.outputToken))
	empty := true

	for i, tokenExpr := range p.outputToken {
		if i >= len(p.config.InputToken) {
			break
		}

		value := tokenExpr.Search(result.Output)
		if pathValueEmpty(value) {
			// nil deletes the stale cursor parameter on the next call
			next[p.config.InputToken[i]] = nil

			continue
		}

		empty = false
		next[p.config.InputToken[i]] = value
	}

	p.cursor = next

	if empty {
		p.finished = true

		return
	}

	if p.moreResults != nil {
		if truncated, ok := p.moreResults.Search(result.Output).(bool); ok && !truncated {
			p.finished = true
		}
	}
}

// extractItems pulls the page's elements from the configured result key(s).
func (p *Pager) extractItems(result *Result) []interface{} {
	items := make([]interface{}, 0)

	for _, keyExpr := range p.resultKey {
		value := keyExpr.Search(result.Output)
		if value == nil {
			continue
		}

		if list, ok := value.([]interface{}); ok {
			items = append(items, list...)

			continue
		}

		items = append(items, value)
	}

	return items
}

// EachPage invokes fn for every remaining page, stopping on the first error.
func (p *Pager) EachPage(ctx context.Context, fn func(*Page) error) error {
	for p.HasNext() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return err
		}

		if err := fn(page); err != nil {
			return err
		}
	}

	return nil
}

// PageResult carries one page (or the error that ended the stream) on the
// channel returned by StreamPages.
type PageResult struct {
	Page *Page
	Err  error
}

// StreamPages fetches pages sequentially in a goroutine and delivers them on
// the returned channel. The channel is closed after the last page or the
// first error; cancel the context to stop early.
func StreamPages(ctx context.Context, pager *Pager) <-chan PageResult {
	results := make(chan PageResult)

	go func() {
		defer close(results)

		for pager.HasNext() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				select {
				case results <- PageResult{Err: err}:
				case <-ctx.Done():
				}

				return
			}

			select {
			case results <- PageResult{Page: page}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return results
}

// ItemIterator flattens a page sequence into individual elements. Beyond the
// underlying Pager it holds only a read position within the current page.
type ItemIterator struct {
	ctx    context.Context
	pager  *Pager
	buffer []interface{}
	pos    int
	err    error
}

// NewItemIterator builds a flattened element iterator over the given
// operation. It fails exactly like NewPager when the operation carries no
// pagination metadata.
func NewItemIterator(ctx context.Context, exec Executor, model *ServiceModel, operation string, params map[string]interface{}) (*ItemIterator, error) {
	pager, err := NewPager(exec, model, operation, params)
	if err != nil {
		return nil, err
	}

	return &ItemIterator{ctx: ctx, pager: pager}, nil
}

// HasNext reports whether another element is available, fetching ahead
// through empty pages as needed.
func (it *ItemIterator) HasNext() bool {
	return it.ensure()
}

// Next returns the next element, or ErrNoMoreItems once the sequence is
// exhausted.
func (it *ItemIterator) Next() (interface{}, error) {
	if !it.ensure() {
		if it.err != nil {
			return nil, it.err
		}

		return nil, ErrNoMoreItems
	}

	item := it.buffer[it.pos]
	it.pos++

	return item, nil
}

// All drains the remaining elements into a slice.
func (it *ItemIterator) All() ([]interface{}, error) {
	var items []interface{}

	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	if it.err != nil {
		return nil, it.err
	}

	return items, nil
}

// ForEach invokes fn for every remaining element, stopping on the first
// error.
func (it *ItemIterator) ForEach(fn func(interface{}) error) error {
	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			return err
		}

		if err := fn(item); err != nil {
			return err
		}
	}

	return it.err
}

// ensure advances to a page with unread elements. It returns false once the
// sequence is exhausted or a fetch failed (the error is kept for Next/All).
func (it *ItemIterator) ensure() bool {
	if it.err != nil {
		return false
	}

	for it.pos >= len(it.buffer) {
		if !it.pager.HasNext() {
			return false
		}

		page, err := it.pager.NextPage(it.ctx)
		if err != nil {
			it.err = err

			return false
		}

		it.buffer = page.Items
		it.pos = 0
	}

	return true
}
