// Package feasibility classifies whether a dose-response series supports
// benchmark-dose modelling.
//
// Classify assigns one of six flags through a fixed decision procedure over
// the affected fractions of the dose groups, ordered by ascending dose:
//
//  1. fewer than three groups: flag 0
//  2. primary trend test fails (average_pair or spearman): flag 1
//  3. two-sided one-sample t-test of the first differences against zero:
//     p < 0.05 flag 2, p < 0.32 flag 3, p < 0.62 flag 4 (four_bucket only),
//     otherwise flag 1
//  4. a negative Pearson correlation between log dose and response turns
//     any flag from step 3 other than 1 into flag 5
//
// An undefined statistic never panics; it falls through to flag 1.
package feasibility
