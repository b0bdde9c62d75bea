package catalog

import (
	"strings"
	"testing"
)

func parse(t *testing.T, csv string) []Record {
	t.Helper()
	records, err := ParseRecords(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseRecords failed: %v", err)
	}
	return records
}

func TestParseRecords_Basic(t *testing.T) {
	records := parse(t, "qid,lat,lon,label\nQ100,45.0,9.0,Foo\n")

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.QID != "Q100" || r.Lat != 45.0 || r.Lon != 9.0 || r.Label != "Foo" {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.ClassID != "" || r.ParentCount != nil {
		t.Errorf("expected absent optional fields, got %+v", r)
	}
}

func TestParseRecords_SigilHeaders(t *testing.T) {
	records := parse(t, "?qid,?lat,?lon,?label\nQ1,1.0,2.0,Bar\n")
	if len(records) != 1 || records[0].QID != "Q1" {
		t.Fatalf("sigil headers not accepted: %+v", records)
	}
}

func TestParseRecords_EntityURI(t *testing.T) {
	records := parse(t, "qid,lat,lon,label\nhttp://www.wikidata.org/entity/Q42,1.5,2.5,Thing\n")
	if len(records) != 1 || records[0].QID != "Q42" {
		t.Fatalf("entity URI not normalized: %+v", records)
	}
}

func TestParseRecords_SkipsBadRows(t *testing.T) {
	csv := strings.Join([]string{
		"qid,lat,lon,label",
		",45.0,9.0,NoId",          // missing id
		"Q2,,9.0,NoLat",           // missing latitude
		"Q3,45.0,not-a-number,X",  // bad longitude
		"Q4,NaN,9.0,X",            // non-finite latitude
		"garbage,45.0,9.0,BadQid", // unparsable id
		"Q5,45.0,9.0,Good",
	}, "\n")

	records := parse(t, csv)
	if len(records) != 1 {
		t.Fatalf("expected only the good row, got %d: %+v", len(records), records)
	}
	if records[0].QID != "Q5" {
		t.Errorf("wrong surviving row: %+v", records[0])
	}
}

func TestParseRecords_LabelDefaultsToQID(t *testing.T) {
	records := parse(t, "qid,lat,lon,label\nQ9,1.0,2.0,\n")
	if len(records) != 1 || records[0].Label != "Q9" {
		t.Fatalf("expected label fallback to QID: %+v", records)
	}
}

func TestParseRecords_OptionalColumns(t *testing.T) {
	csv := "qid,lat,lon,label,class,parents\n" +
		"Q1,45.0,9.0,Alp,http://www.wikidata.org/entity/Q46831,3\n" +
		"Q2,45.0,9.0,Plain,,\n"

	records := parse(t, csv)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if records[0].ClassID != "Q46831" {
		t.Errorf("expected class Q46831, got %q", records[0].ClassID)
	}
	if records[0].ParentCount == nil || *records[0].ParentCount != 3 {
		t.Errorf("expected parent count 3, got %v", records[0].ParentCount)
	}

	if records[1].ClassID != "" || records[1].ParentCount != nil {
		t.Errorf("expected empty optionals, got %+v", records[1])
	}
}

func TestParseRecords_LowercaseQID(t *testing.T) {
	records := parse(t, "qid,lat,lon,label\nq77,1.0,1.0,X\n")
	if len(records) != 1 || records[0].QID != "Q77" {
		t.Fatalf("expected upper-cased id, got %+v", records)
	}
}

func TestParseRecords_EmptyInput(t *testing.T) {
	if _, err := ParseRecords(strings.NewReader("")); err == nil {
		t.Error("expected error for missing header")
	}

	records := parse(t, "qid,lat,lon,label\n")
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}
