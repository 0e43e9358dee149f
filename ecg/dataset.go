package ecg

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownDataset = errors.New("unknown dataset")

// Dataset names a collection of labeled beats.
type Dataset string

const (
	MITBIH Dataset = "mitbih"
	PTBDB  Dataset = "ptbdb"
)

func (d Dataset) String() string {
	return string(d)
}

// the position in the slice is the numeric label used in the CSV files
var datasetClasses = map[Dataset][]Class{
	MITBIH: {NormalN, Supraventricular, Ventricular, Fusion, Unknown},
	PTBDB:  {Normal, Abnormal},
}

// Datasets returns all known datasets.
func Datasets() []Dataset {
	return []Dataset{MITBIH, PTBDB}
}

func ParseDataset(s string) (Dataset, error) {
	d := Dataset(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := datasetClasses[d]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDataset, s)
	}
	return d, nil
}

// Classes returns the classes of the given dataset in label order.
func Classes(d Dataset) []Class {
	classes := datasetClasses[d]
	result := make([]Class, len(classes))
	copy(result, classes)
	return result
}

// DefaultClass is the first class of the given dataset.
func DefaultClass(d Dataset) Class {
	classes := datasetClasses[d]
	if len(classes) == 0 {
		return ""
	}
	return classes[0]
}

// ClassOf returns the class with the given numeric label in the given dataset.
func ClassOf(d Dataset, label int) (Class, bool) {
	classes := datasetClasses[d]
	if label < 0 || label >= len(classes) {
		return "", false
	}
	return classes[label], true
}

// ParseClass finds the class with the given name in the given dataset. It accepts the full
// name ("Ventricular (V)") as well as the short code ("V"), case insensitive.
func ParseClass(d Dataset, s string) (Class, bool) {
	s = strings.TrimSpace(s)
	for _, class := range datasetClasses[d] {
		if strings.EqualFold(string(class), s) || strings.EqualFold(class.Code(), s) {
			return class, true
		}
	}
	return "", false
}

// ResolveClass finds the class with the given name or code in the given dataset. Unknown names
// are taken as they are, an empty name stays empty.
func ResolveClass(d Dataset, s string) Class {
	if class, ok := ParseClass(d, s); ok {
		return class
	}
	return Class(strings.TrimSpace(s))
}

// Code is the short code in parentheses at the end of the class name, or the name itself.
func (c Class) Code() string {
	name := string(c)
	open := strings.LastIndex(name, "(")
	if open == -1 || !strings.HasSuffix(name, ")") {
		return name
	}
	return name[open+1 : len(name)-1]
}
