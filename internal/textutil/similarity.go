package textutil

// BigramDice computes the Dice coefficient over character bigrams of two
// normalized strings. Sensitive to small inflection differences that token
// comparison treats as entirely distinct terms.
func BigramDice(a, b string) float64 {
	ba := bigrams(a)
	bb := bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}
	var overlap float64
	for gram, count := range ba {
		if other, ok := bb[gram]; ok {
			if other < count {
				overlap += other
			} else {
				overlap += count
			}
		}
	}
	var total float64
	for _, count := range ba {
		total += count
	}
	for _, count := range bb {
		total += count
	}
	return 2 * overlap / total
}

// Similarity reports how close two texts are after normalization, on [0, 1].
// It takes the maximum of token cosine similarity and character-bigram Dice.
func Similarity(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	cos := CosineSimilarity(NewFingerprint(a), NewFingerprint(b))
	dice := BigramDice(na, nb)
	if dice > cos {
		return dice
	}
	return cos
}

func bigrams(text string) map[string]float64 {
	runes := []rune(text)
	if len(runes) < 2 {
		return nil
	}
	grams := make(map[string]float64, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}
