package game

// fallbackQuestions is the fixed pool used when the selected maker submits
// nothing before the selecting deadline.
var fallbackQuestions = []string{
	"AI can be more creative than humans",
	"AGI will arrive before 2030",
	"AI can have feelings",
	"Every job will be replaced by AI",
	"AI deserves legal rights",
	"AI can create real works of art",
	"AI can be conscious",
	"AI development should be regulated",
	"AI will become a threat to humanity",
	"AI can be a friend to humans",
}
