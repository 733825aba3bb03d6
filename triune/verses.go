package triune

import (
	"fmt"
	"math/rand/v2"
)

// DefaultVerses are appended, one per run, to the Will's answer.
var DefaultVerses = []string{
	"Trust in the LORD with all your heart, and do not lean on your own understanding. - Proverbs 3:5",
	"The blessing of the LORD makes rich, and He adds no sorrow with it. - Proverbs 10:22",
	"He who walks with wise men will be wise, but the companion of fools will be destroyed. - Proverbs 13:20",
	"Whatever you do, work heartily, as for the Lord and not for men. - Colossians 3:23",
	"For what does it profit a man to gain the whole world and forfeit his soul? - Mark 8:36",
}

// RandomVerse returns a suffix function drawing from verses.
func RandomVerse(verses []string) func() string {
	return func() string {
		if len(verses) == 0 {
			return ""
		}
		return verses[rand.IntN(len(verses))]
	}
}

func decorate(answer, verse string) string {
	if verse == "" {
		return answer
	}
	return fmt.Sprintf("%s\n\n> *\"%s\"*", answer, verse)
}
