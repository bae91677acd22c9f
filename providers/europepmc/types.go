package europepmc

// SearchResponse ist die Top-Level-Struktur der Europe PMC API-Antwort.
type SearchResponse struct {
	HitCount   int `json:"hitCount"`
	ResultList struct {
		Result []Article `json:"result"`
	} `json:"resultList"`
}

// Article repräsentiert einen einzelnen Artikel in der API-Antwort.
type Article struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	PMID         string `json:"pmid"`
	DOI          string `json:"doi"`
	Title        string `json:"title"`
	JournalTitle string `json:"journalTitle"`
	CitedByCount int    `json:"citedByCount"`
	IsOpenAccess string `json:"isOpenAccess"` // "Y" oder "N"
	JournalInfo  struct {
		Journal struct {
			Title string `json:"title"`
		} `json:"journal"`
	} `json:"journalInfo"`
}

func (a *Article) journal() string {
	if a.JournalTitle != "" {
		return a.JournalTitle
	}
	return a.JournalInfo.Journal.Title
}
