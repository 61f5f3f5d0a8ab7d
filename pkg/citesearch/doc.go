// Package citesearch is a Go client for a citation sentence index stored in Redis or Valkey
// with the search module.
//
// The index is populated by the citeval CLI (harvest, embed, upload). The client answers the
// same questions as the HTTP service without running it:
//
//	client, _ := citesearch.New(ctx,
//	    citesearch.WithRedis("localhost:6379", ""),
//	    citesearch.WithEmbedder(myEmbedder),
//	    citesearch.WithIndex("citesearch-sentences", 384),
//	)
//	defer client.Close()
//	hits, _ := client.Search(ctx, "Rennet curdles milk", 10)
//	paper, _ := client.Paper(ctx, hits[0].DOI)
package citesearch
