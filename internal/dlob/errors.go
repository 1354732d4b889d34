package dlob

import "errors"

// ErrSubscriberLoad wraps whatever the account subscriber's Load returned;
// propagated verbatim per spec.md §4.5/§7.
var ErrSubscriberLoad = errors.New("account subscriber load failed")

// ErrUnknownMarket is returned by query iterators for a (market, marketType)
// pair that has never seen an insert_order call.
var ErrUnknownMarket = errors.New("unknown market")
