package domain

import "time"

// RedactedURL replaces connection URLs in every public view.
const RedactedURL = "<redacted>"

// DataSource is a named database that sql://<id> variables query.
// URLEnc holds the sealed connection URL; the plain URL never reaches a store.
type DataSource struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Driver    string    `json:"driver"`
	URLEnc    string    `json:"urlEnc"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DataSourceView is the public form of a data source.
type DataSourceView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Driver    string    `json:"driver"`
	URL       string    `json:"url"`
	ReadOnly  bool      `json:"readOnly,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// View returns the public form of d with its URL redacted.
func (d DataSource) View() DataSourceView {
	return DataSourceView{ID: d.ID, Name: d.Name, Driver: d.Driver, URL: RedactedURL, UpdatedAt: d.UpdatedAt}
}
