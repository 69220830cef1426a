package parser

// Parser turns a rendered watch model page into its price and spec fragments.
// Implementations never fail on a missing field; they substitute N/A.
type Parser interface {
	ParseWatchPage(html string) (*WatchPage, error)
}
