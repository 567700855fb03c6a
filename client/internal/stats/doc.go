// Package stats reads a quotestream-server's Prometheus endpoint and reduces
// the quotestream_* families to a Stats summary for the client CLI.
//
// The endpoint is fetched with an Accept header asking for the text
// exposition format and parsed with prometheus/common/expfmt. A family
// missing from the scrape reads as zero.
package stats
