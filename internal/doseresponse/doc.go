// Package doseresponse turns the well observations of one (chemical,
// endpoint) unit into the canonical dose-response table.
//
// The stages run in a fixed order:
//
//  1. PlateFilter drops plates whose negative controls show excessive
//     background hits.
//  2. Build groups the surviving wells by concentration.
//  3. FilterWellCount drops groups with too few scored wells.
//  4. Format projects the groups onto (dose, num_affected, total_num).
//
// Prepare runs stages 1 to 3 and checks the unit's shape first. Every stage
// is a pure function of its input.
package doseresponse
