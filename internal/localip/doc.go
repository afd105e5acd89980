// Package localip discovers the workstation's storage-network IP. Indexing
// and QC pulls use it to keep operators on books whose scans sit on a
// storage volume their workstation can actually reach.
package localip
