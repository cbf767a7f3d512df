// Package convert holds the pure unit and field conversions shared by the
// platform transformers: money, mass, status vocabularies and taxonomy.
// Every function is total and returns typed errors instead of panicking.
package convert
