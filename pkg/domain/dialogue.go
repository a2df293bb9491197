package domain

// DialogueLine is one attributed utterance by a named host within a podcast script.
type DialogueLine struct {
	ID      string `bson:"id" json:"id"`
	Host    string `bson:"host" json:"host"`
	Content string `bson:"content" json:"content"`
}
