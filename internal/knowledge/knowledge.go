package knowledge

import (
	"regexp"
	"strings"
)

const documentBaseURL = "https://rosgosts.ru/file/gost/91/100/"

// Document is a regulatory document listed in the knowledge base.
type Document struct {
	ID       int
	Number   string
	Title    string
	FileType string
}

var (
	gostPrefix = regexp.MustCompile(`(?i)ГОСТ`)
	spaces     = regexp.MustCompile(`\s+`)
)

// URL returns the download link of the document.
func (d Document) URL() string {
	name := gostPrefix.ReplaceAllString(d.Number, "gost")
	name = spaces.ReplaceAllString(name, "_")
	name = strings.ReplaceAll(name, "/", "_")
	return documentBaseURL + strings.ToLower(name) + "." + strings.ToLower(d.FileType)
}

// Documents is the published list of documents.
var Documents = []Document{
	{ID: 1, Number: "ГОСТ 10180-2012", Title: "Бетоны. Методы определения прочности по контрольным образцам", FileType: "pdf"},
	{ID: 2, Number: "ГОСТ 28570-2019", Title: "Бетоны. Методы определения прочности по образцам, отобранным из конструкций", FileType: "pdf"},
	{ID: 3, Number: "ГОСТ 18105-2018", Title: "Бетоны. Правила контроля и оценки прочности", FileType: "pdf"},
	{ID: 4, Number: "ГОСТ 12730.0-2020", Title: "Бетоны. Общие требования к методам определения плотности, влажности, водопоглощения, пористости и водонепроницаемости", FileType: "pdf"},
	{ID: 5, Number: "ГОСТ 12730.5-2018", Title: "Бетоны. Методы определения водонепроницаемости", FileType: "pdf"},
	{ID: 6, Number: "ГОСТ 10060-2012", Title: "Бетоны. Методы определения морозостойкости", FileType: "pdf"},
	{ID: 7, Number: "ГОСТ 22690-2015", Title: "Бетоны. Определение прочности механическими методами неразрушающего контроля", FileType: "pdf"},
	{ID: 8, Number: "ГОСТ 8269.0-97", Title: "Щебень и гравий из плотных горных пород и отходов промышленного производства для строительных работ. Методы физико-механических испытаний", FileType: "pdf"},
	{ID: 9, Number: "ГОСТ 8735-88", Title: "Песок для строительных работ. Методы испытаний", FileType: "pdf"},
	{ID: 10, Number: "ГОСТ 5802-86", Title: "Растворы строительные. Методы испытаний", FileType: "pdf"},
	{ID: 11, Number: "ГОСТ 30108-94", Title: "Материалы и изделия строительные. Определение удельной эффективной активности естественных радионуклидов", FileType: "pdf"},
	{ID: 12, Number: "СП 63.13330.2018", Title: "Бетонные и железобетонные конструкции. Основные положения", FileType: "doc"},
}

// Search returns the documents whose number or title contains query, ignoring case.
// An empty query returns every document.
func Search(docs []Document, query string) []Document {
	term := strings.ToLower(strings.TrimSpace(query))
	found := make([]Document, 0, len(docs))
	for _, d := range docs {
		if term == "" || strings.Contains(strings.ToLower(d.Number), term) || strings.Contains(strings.ToLower(d.Title), term) {
			found = append(found, d)
		}
	}
	return found
}
