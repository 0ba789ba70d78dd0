// Package types defines the nested menu option model, the selection session
// state machine, the cart line adapter, and the Store and Table interfaces
// with their standard errors.
//
// An OptionNode forest hangs off each MenuItem. A Session walks that forest
// level by level, enforcing each level's cardinality bounds, and Confirm
// returns the finished SelectedOption tree. NewCartLine folds the tree into
// a priced CartLine whose DedupKey decides whether two cart adds merge.
package types
