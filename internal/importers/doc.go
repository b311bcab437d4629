// Package importers reads tabular book lists.
//
// A source is a delimited text file whose first line names the columns.
// Every following line becomes a Row keyed by those names:
//
//	title,author,isbn13,page_count,book_tags,author_tags
//	Kafka on the Shore,Haruki Murakami,9781400079278,467,fiction;japanese,japanese
//
// The reader is a single forward pass over its source. Callers that need
// the whole file use ReadAll; everything else pulls rows with Next until
// io.EOF.
package importers
