// Package cluster holds the view of the cluster the socket client consumes:
// Node records with their ports, a topology provider interface and a tracker
// for node bannage.
//
// Topology discovery itself is out of scope, StaticTopology serves fixed
// member lists such as the ones given by bootstrap URLs.
package cluster
