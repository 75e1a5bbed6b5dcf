// Package feed models supplier XML product feeds: the source configuration,
// the field mapping rules that turn feed elements into product records, and
// the pricing policy applied to supplier costs.
package feed
