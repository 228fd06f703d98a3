// Package output writes header-aligned rows as CSV.
//
// The CSVWriter streams every row straight to the underlying writer, so memory
// use does not grow with the number of rows. Files whose name ends in .gz or
// .zst are compressed on the fly.
//
// Example usage:
//
//	w, err := output.Create("out.csv.gz", output.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	if err := w.WriteHeader([]string{"id", "name"}); err != nil {
//	    return err
//	}
//	if err := w.Write(models.Row{"1", "Ada"}); err != nil {
//	    return err
//	}
package output
