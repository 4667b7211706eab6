// Package main provides the entry point for the sitecrawl CLI.
//
// sitecrawl crawls every page of a single host and reports, for each page,
// the links it contains.
//
// Usage:
//
//	sitecrawl crawl https://example.com
//	sitecrawl serve --addr :8080
//
// See --help for all available options.
package main

func main() {
	Execute()
}
