// Package ingest reads the master well-observation table and validates it at
// the boundary. Every row is parsed into a domain.WellObservation and checked
// once; later stages never re-check column presence or value ranges.
//
// The table is tall: one row per (chemical, concentration, plate, well,
// endpoint) with a 0/1/blank/NA value. CSV and XLSX files are supported.
package ingest
