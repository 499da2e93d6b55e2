/*
Package datasource keeps the named databases that sql://<id> variables query.

A Registry stores each data source with its connection URL sealed by an
AES-256-GCM Cipher, so stores and API responses never carry the plain URL.
Data sources listed in the configuration file are served next to the stored
ones as read-only entries; a stored data source with the same ID wins.

The Registry implements resolve.DataSources and is handed to
resolve.Standard, which is how a registered data source becomes queryable
from a project variable.
*/
package datasource
