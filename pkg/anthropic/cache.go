package anthropic

// CachedSystemBlocks constructs system content blocks with a cache
// breakpoint set to a 5-minute TTL. The arbiter sends the same system
// prompt on every batch within a run, so consecutive calls read the
// warm cache instead of re-billing the full prompt.
func CachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "5m",
			},
		},
	}
}
