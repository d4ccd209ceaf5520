package stream

// CharQueue is a FIFO of runes waiting to be typed.
type CharQueue struct {
	runes []rune
	head  int
}

func (q *CharQueue) Push(text string) {
	if q.head > 0 && q.head == len(q.runes) {
		q.runes = q.runes[:0]
		q.head = 0
	}
	for _, r := range text {
		q.runes = append(q.runes, r)
	}
}

func (q *CharQueue) Pop() (rune, bool) {
	if q.head >= len(q.runes) {
		return 0, false
	}
	r := q.runes[q.head]
	q.head++
	return r, true
}

func (q *CharQueue) Len() int {
	return len(q.runes) - q.head
}

// Clear drops everything still queued.
func (q *CharQueue) Clear() {
	q.runes = nil
	q.head = 0
}
