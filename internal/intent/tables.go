// internal/intent/tables.go
package intent

// knownPublications lists the publication names and aliases recognized by the
// publication matcher. Longer names come first so that "bbc news" wins over
// "bbc" when both occur.
var knownPublications = []string{
	"wall street journal",
	"new york times",
	"washington post",
	"associated press",
	"the guardian",
	"fox news",
	"nbc news",
	"abc news",
	"bbc news",
	"ny times",
	"guardian",
	"reuters",
	"wsj",
	"nyt",
	"cnn",
	"bbc",
}

// knownCategories are the top-level headline categories. They outrank topic
// heuristics by matcher order.
var knownCategories = []string{
	"world",
	"politics",
	"business",
	"technology",
	"science",
	"health",
	"sports",
	"entertainment",
	"arts",
}

// topicKeywords are standalone terms treated as topics when no category or
// publication matched.
var topicKeywords = []string{
	"ukraine",
	"election",
	"covid",
	"climate",
}

// genericPhrases mark a request for default headlines.
var genericPhrases = []string{
	"latest headlines",
	"latest news",
	"top news",
	"breaking news",
	"headlines",
	"news",
	"today",
}

// topicPrepositions introduce a free-form topic ("articles about X").
var topicPrepositions = []string{
	"about",
	"regarding",
	"on",
}
