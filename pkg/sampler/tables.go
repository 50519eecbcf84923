package sampler

// DefaultTables is a small, representative set of empirical histograms
// shaped like a real Lobsters database's vote/comment skew: a long tail of
// highly active users/stories and a short head of everyone else. The real
// tables are a data input, out of scope for this package — this is only a
// usable default/test fixture so the harness has something to prime against
// without an external config file.
func DefaultTables() Tables {
	return Tables{
		VotesPerUser: []Bin{
			{Value: 0, Count: 40},
			{Value: 1, Count: 25},
			{Value: 5, Count: 15},
			{Value: 20, Count: 10},
			{Value: 100, Count: 6},
			{Value: 500, Count: 3},
			{Value: 2000, Count: 1},
		},
		VotesPerStory: []Bin{
			{Value: 0, Count: 20},
			{Value: 1, Count: 15},
			{Value: 5, Count: 10},
			{Value: 20, Count: 5},
		},
		VotesPerComment: []Bin{
			{Value: 0, Count: 60},
			{Value: 1, Count: 30},
			{Value: 5, Count: 8},
			{Value: 20, Count: 2},
		},
		CommentsPerStory: []Bin{
			{Value: 0, Count: 25},
			{Value: 1, Count: 12},
			{Value: 5, Count: 8},
			{Value: 10, Count: 5},
		},
		VotesPerUserWidth:     100,
		VotesPerStoryWidth:    10,
		VotesPerCommentWidth:  10,
		CommentsPerStoryWidth: 10,
	}
}
