// Package minio provides a blobstore.Store for MinIO and other S3-compatible
// object stores (Ceph, SeaweedFS, Garage) using the MinIO client.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "ingest", "daily/")
//	svc, err := segbloom.New(store, "2011.csv")
//
// Objects are streamed with a single GetObject request; nothing is written back.
package minio
